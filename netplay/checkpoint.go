package netplay

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"boardrush/game/board"
	"boardrush/game/domain"
)

const CheckpointVersion = 1

var (
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint")
	ErrRosterMismatch    = errors.New("checkpoint does not match roster")
)

// Checkpoint は GameState の動的な部分すべてです。名簿の静的な情報（ID・色・名前）は含みません。
// LastSeq は送信者スロット（席順、最後に権威）ごとの適用済みシーケンスです。
type Checkpoint struct {
	TurnNumber uint32
	Phase      domain.Phase
	Dice       int
	Current    int
	Winner     int
	Seed       uint64
	Pawns      []domain.Position
	Status     []domain.PlayerStatus
	Tokens     []int
	Event      *domain.EventInstance
	Used       domain.UsedContent
	LastSeq    []uint32
}

// Capture は状態のスナップショットを取ります。
func Capture(s domain.GameState, lastSeq []uint32) Checkpoint {
	cp := Checkpoint{
		TurnNumber: s.TurnNumber,
		Phase:      s.Phase,
		Dice:       s.Dice,
		Current:    s.Current,
		Winner:     s.Winner,
		Seed:       s.Seed,
		Pawns:      make([]domain.Position, len(s.Pawns)),
		Status:     make([]domain.PlayerStatus, len(s.Players)),
		Tokens:     make([]int, len(s.Players)),
		Event:      s.Event.Clone(),
		Used:       s.Used.Clone(),
		LastSeq:    append([]uint32(nil), lastSeq...),
	}
	for i, p := range s.Pawns {
		cp.Pawns[i] = p.Pos
	}
	for i, p := range s.Players {
		cp.Status[i] = p.Status
		cp.Tokens[i] = p.TokenBalance
	}
	return cp
}

// Restore は名簿とチェックポイントから GameState を組み立てます。
func Restore(roster []domain.Player, cp Checkpoint) (domain.GameState, error) {
	if len(roster) != len(cp.Status) || len(cp.Pawns) != len(roster)*domain.PawnsPerPlayer {
		return domain.GameState{}, fmt.Errorf("%w: %d players, checkpoint has %d", ErrRosterMismatch, len(roster), len(cp.Status))
	}
	s := domain.GameState{
		Players:    make([]domain.Player, len(roster)),
		Pawns:      make([]domain.Pawn, len(cp.Pawns)),
		Current:    cp.Current,
		Dice:       cp.Dice,
		Phase:      cp.Phase,
		TurnNumber: cp.TurnNumber,
		Winner:     cp.Winner,
		Seed:       cp.Seed,
		Event:      cp.Event.Clone(),
		Used:       cp.Used.Clone(),
	}
	copy(s.Players, roster)
	for i := range s.Players {
		s.Players[i].Status = cp.Status[i]
		s.Players[i].TokenBalance = cp.Tokens[i]
		color := s.Players[i].Color
		for j := range domain.PawnsPerPlayer {
			idx := i*domain.PawnsPerPlayer + j
			pos := cp.Pawns[idx]
			s.Pawns[idx] = domain.Pawn{ID: uint8(j + 1), Owner: color, Pos: pos}
			if pos.IsFinished() {
				s.Finished[color]++
			}
		}
	}
	return s, nil
}

// Checksum は状態のエンコード結果の xxhash64 です。シーケンス情報は含みません。
func Checksum(s domain.GameState) uint64 {
	return xxhash.Sum64(Capture(s, nil).Encode())
}

// Encode はビット単位に詰めたチェックポイントを返します。
//
//	version        8
//	phase 3, dice 3, current 2, players-1 2
//	winner         1 + 2
//	turn           uvarint
//	seed           64
//	pawns          players*4 * (tag 2, index 6)
//	players        status 2, tokens uvarint
//	event          1 [type 3, owner 2, opponent 1+2, refs 2 + uvarint*, submitted 2, scores 2*uvarint, resolved 1]
//	used           per category: count uvarint, indices uvarint*
//	lastSeq        count uvarint, uvarint*
func (cp Checkpoint) Encode() []byte {
	w := &bitWriter{}
	w.WriteBits(CheckpointVersion, 8)
	w.WriteBits(uint64(cp.Phase), 3)
	w.WriteBits(uint64(cp.Dice), 3)
	w.WriteBits(uint64(cp.Current), 2)
	w.WriteBits(uint64(len(cp.Status)-1), 2)
	w.WriteBool(cp.Winner >= 0)
	if cp.Winner >= 0 {
		w.WriteBits(uint64(cp.Winner), 2)
	}
	w.WriteUvarint(uint64(cp.TurnNumber))
	w.WriteBits(cp.Seed, 64)

	for _, pos := range cp.Pawns {
		w.WriteBits(uint64(pos.Kind), 2)
		w.WriteBits(uint64(pos.Index), 6)
	}
	for i, st := range cp.Status {
		w.WriteBits(uint64(st), 2)
		w.WriteUvarint(uint64(cp.Tokens[i]))
	}

	w.WriteBool(cp.Event != nil)
	if ev := cp.Event; ev != nil {
		w.WriteBits(uint64(ev.Type), 3)
		w.WriteBits(uint64(ev.Owner), 2)
		w.WriteBool(ev.Opponent >= 0)
		if ev.Opponent >= 0 {
			w.WriteBits(uint64(ev.Opponent), 2)
		}
		w.WriteBits(uint64(len(ev.Content)), 2)
		for _, idx := range ev.Content {
			w.WriteUvarint(uint64(idx))
		}
		w.WriteBool(ev.Submitted[0])
		w.WriteBool(ev.Submitted[1])
		w.WriteUvarint(uint64(ev.Scores[0]))
		w.WriteUvarint(uint64(ev.Scores[1]))
		w.WriteBool(ev.Resolution == domain.ResolutionResolved)
	}

	for t := domain.EventQuiz; t < domain.NumEventTypes; t++ {
		w.WriteUvarint(uint64(len(cp.Used[t])))
		for _, idx := range cp.Used[t] {
			w.WriteUvarint(uint64(idx))
		}
	}

	w.WriteUvarint(uint64(len(cp.LastSeq)))
	for _, seq := range cp.LastSeq {
		w.WriteUvarint(uint64(seq))
	}
	return w.Bytes()
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorruptCheckpoint}, args...)...)
}

// DecodeCheckpoint は Encode の逆変換です。範囲外の値は ErrCorruptCheckpoint になります。
func DecodeCheckpoint(data []byte) (Checkpoint, error) {
	r := newBitReader(data)
	if v := r.ReadBits(8); r.Err() == nil && v != CheckpointVersion {
		return Checkpoint{}, corrupt("version %d", v)
	}
	var cp Checkpoint
	cp.Phase = domain.Phase(r.ReadBits(3))
	cp.Dice = int(r.ReadBits(3))
	cp.Current = int(r.ReadBits(2))
	n := int(r.ReadBits(2)) + 1
	cp.Winner = -1
	if r.ReadBool() {
		cp.Winner = int(r.ReadBits(2))
	}
	turn := r.ReadUvarint()
	cp.TurnNumber = uint32(turn)
	cp.Seed = r.ReadBits(64)
	if err := r.Err(); err != nil {
		return Checkpoint{}, err
	}
	switch {
	case cp.Phase > domain.PhaseGameOver:
		return Checkpoint{}, corrupt("phase %d", cp.Phase)
	case cp.Dice > 6:
		return Checkpoint{}, corrupt("dice %d", cp.Dice)
	case n < domain.MinPlayers:
		return Checkpoint{}, corrupt("%d players", n)
	case cp.Current >= n || cp.Winner >= n:
		return Checkpoint{}, corrupt("seat out of range")
	case turn > uint64(^uint32(0)):
		return Checkpoint{}, corrupt("turn %d", turn)
	}

	cp.Pawns = make([]domain.Position, n*domain.PawnsPerPlayer)
	for i := range cp.Pawns {
		pos := domain.Position{Kind: domain.PositionKind(r.ReadBits(2)), Index: int(r.ReadBits(6))}
		if err := validatePosition(pos); err != nil && r.Err() == nil {
			return Checkpoint{}, err
		}
		cp.Pawns[i] = pos
	}
	cp.Status = make([]domain.PlayerStatus, n)
	cp.Tokens = make([]int, n)
	for i := range n {
		cp.Status[i] = domain.PlayerStatus(r.ReadBits(2))
		cp.Tokens[i] = int(r.ReadUvarint())
		if cp.Status[i] > domain.StatusForfeited && r.Err() == nil {
			return Checkpoint{}, corrupt("status %d", cp.Status[i])
		}
	}

	if r.ReadBool() {
		ev, err := decodeEvent(r, n)
		if err != nil {
			return Checkpoint{}, err
		}
		cp.Event = ev
	}

	for t := domain.EventQuiz; t < domain.NumEventTypes; t++ {
		count := r.ReadUvarint()
		if r.Err() != nil {
			break
		}
		if count > uint64(r.Remaining()) {
			return Checkpoint{}, corrupt("used %s count %d", t, count)
		}
		for i := range count {
			idx := r.ReadUvarint()
			if idx > 0xFFFF || (i > 0 && uint16(idx) <= cp.Used[t][i-1]) {
				if r.Err() == nil {
					return Checkpoint{}, corrupt("used %s index %d", t, idx)
				}
				break
			}
			cp.Used[t] = append(cp.Used[t], uint16(idx))
		}
	}

	count := r.ReadUvarint()
	if r.Err() == nil && count > uint64(r.Remaining()) {
		return Checkpoint{}, corrupt("lastSeq count %d", count)
	}
	for range count {
		seq := r.ReadUvarint()
		if r.Err() != nil {
			break
		}
		cp.LastSeq = append(cp.LastSeq, uint32(seq))
	}
	if err := r.Err(); err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

func validatePosition(pos domain.Position) error {
	switch pos.Kind {
	case domain.PosHome, domain.PosFinished:
		if pos.Index != 0 {
			return corrupt("index %d on %v", pos.Index, pos.Kind)
		}
	case domain.PosCircuit:
		if pos.Index >= board.CircuitLength {
			return corrupt("circuit index %d", pos.Index)
		}
	case domain.PosFinalPath:
		if pos.Index >= board.FinalPathLength-1 {
			return corrupt("final path index %d", pos.Index)
		}
	}
	return nil
}

func decodeEvent(r *bitReader, players int) (*domain.EventInstance, error) {
	ev := &domain.EventInstance{
		Type:     domain.EventType(r.ReadBits(3)),
		Owner:    int(r.ReadBits(2)),
		Opponent: -1,
	}
	if r.ReadBool() {
		ev.Opponent = int(r.ReadBits(2))
	}
	refs := int(r.ReadBits(2))
	for range refs {
		idx := r.ReadUvarint()
		if idx > 0xFFFF && r.Err() == nil {
			return nil, corrupt("event ref %d", idx)
		}
		ev.Content = append(ev.Content, uint16(idx))
	}
	ev.Submitted[0] = r.ReadBool()
	ev.Submitted[1] = r.ReadBool()
	ev.Scores[0] = int(r.ReadUvarint())
	ev.Scores[1] = int(r.ReadUvarint())
	if r.ReadBool() {
		ev.Resolution = domain.ResolutionResolved
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	switch {
	case !ev.Type.Valid():
		return nil, corrupt("event type %d", ev.Type)
	case ev.Owner >= players || ev.Opponent >= players:
		return nil, corrupt("event seat out of range")
	case refs == 0:
		return nil, corrupt("event without content")
	}
	return ev, nil
}

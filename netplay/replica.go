package netplay

import (
	"errors"
	"fmt"
	"slices"

	"boardrush/game/domain"
	"boardrush/game/turn"
)

var (
	ErrUnauthorized   = errors.New("unauthorized action")
	ErrSequenceGap    = errors.New("sequence gap")
	ErrDuplicate      = errors.New("duplicate action")
	ErrDesyncDetected = errors.New("desync detected")
	ErrStaleTurn      = errors.New("action stamped for another turn")
	ErrNotLocal       = errors.New("sender is not hosted by this replica")
)

// Config は Replica の設定です。
type Config struct {
	// Self はこのレプリカ自身の送信者IDです。権威なら AuthorityID と同じです。
	Self        domain.PlayerID
	AuthorityID domain.PlayerID
	// Hosted はこのレプリカが代理で送信する席（権威側の AI など）です。
	Hosted  []domain.PlayerID
	Machine *turn.Machine
	Roster  []domain.Player
}

// Result は Submit / Receive で状態に起きたことです。
type Result struct {
	Effects []turn.Effect
	// Adopted はチェックポイントで状態を置き換えたことを示します。
	Adopted bool
	// Acked は自分の未確認アクションのエコーを受け取ったことを示します。
	Acked bool
}

// Replica は1つの GameState を所有し、ローカルの意図とリモートのアクションを同じ規則で適用します。
// 並行アクセスには対応しません。1つのゴルーチン（Loop やルームの tick）から使います。
type Replica struct {
	cfg     Config
	roster  []domain.Player
	state   domain.GameState
	gate    *SequenceGate
	pending []turn.Action
}

func NewReplica(cfg Config, state domain.GameState) (*Replica, error) {
	if cfg.Machine == nil {
		return nil, errors.New("netplay: machine is required")
	}
	if err := domain.ValidateRoster(cfg.Roster); err != nil {
		return nil, err
	}
	if len(state.Players) != len(cfg.Roster) {
		return nil, fmt.Errorf("%w: state has %d players", ErrRosterMismatch, len(state.Players))
	}
	senders := make([]domain.PlayerID, 0, len(cfg.Roster)+1)
	for _, p := range cfg.Roster {
		senders = append(senders, p.ID)
	}
	senders = append(senders, cfg.AuthorityID)
	return &Replica{
		cfg:    cfg,
		roster: slices.Clone(cfg.Roster),
		state:  state.Clone(),
		gate:   NewSequenceGate(senders),
	}, nil
}

// NewReplicaFromCheckpoint は途中参加・再接続用に、チェックポイントから状態とシーケンスを復元します。
func NewReplicaFromCheckpoint(cfg Config, cp Checkpoint) (*Replica, error) {
	state, err := Restore(cfg.Roster, cp)
	if err != nil {
		return nil, err
	}
	r, err := NewReplica(cfg, state)
	if err != nil {
		return nil, err
	}
	r.gate.Reset(cp.LastSeq)
	return r, nil
}

func (r *Replica) IsAuthority() bool {
	return r.cfg.Self == r.cfg.AuthorityID
}

func (r *Replica) Self() domain.PlayerID {
	return r.cfg.Self
}

func (r *Replica) AuthorityID() domain.PlayerID {
	return r.cfg.AuthorityID
}

func (r *Replica) Roster() []domain.Player {
	return slices.Clone(r.roster)
}

// State returns a copy of the current state.
func (r *Replica) State() domain.GameState {
	return r.state.Clone()
}

func (r *Replica) Phase() domain.Phase {
	return r.state.Phase
}

func (r *Replica) TurnNumber() uint32 {
	return r.state.TurnNumber
}

func (r *Replica) Pending() int {
	return len(r.pending)
}

func (r *Replica) LastSeq(sender domain.PlayerID) uint32 {
	return r.gate.Last(sender)
}

func (r *Replica) local(sender domain.PlayerID) bool {
	return sender == r.cfg.Self || slices.Contains(r.cfg.Hosted, sender)
}

// Submit はローカルの意図をアクションにして適用します。ルール違反はエラーとして呼び出し元にだけ返り、
// シーケンスは消費されません。成功したアクションはそのまま配信します。
func (r *Replica) Submit(sender domain.PlayerID, p turn.Payload) (turn.Action, Result, error) {
	if !r.local(sender) {
		return turn.Action{}, Result{}, fmt.Errorf("%w: %s", ErrNotLocal, sender)
	}
	a := turn.Action{
		Sequence:   r.gate.Last(sender) + 1,
		SenderID:   sender,
		TurnNumber: r.state.TurnNumber,
		Payload:    p,
	}
	next, effects, err := r.check(&r.state, a)
	if err != nil {
		return turn.Action{}, Result{}, err
	}
	r.state = next
	r.gate.Commit(sender, a.Sequence)
	if !r.IsAuthority() {
		r.pending = append(r.pending, a)
	}
	return a, Result{Effects: effects}, nil
}

// Receive はリモートのアクションを適用します。
// 重複は ErrDuplicate（自分のエコーなら Acked）、欠落は ErrSequenceGap を返し、状態は変わりません。
// チェックポイントを採用して内容がローカルと違った場合は Adopted と一緒に ErrDesyncDetected を返します。
func (r *Replica) Receive(a turn.Action) (Result, error) {
	if !r.gate.Known(a.SenderID) {
		return Result{}, fmt.Errorf("%w: unknown sender %s", ErrUnauthorized, a.SenderID)
	}
	if cp, ok := a.Payload.(turn.Checkpoint); ok {
		return r.receiveCheckpoint(a.SenderID, cp)
	}

	switch r.gate.Check(a.SenderID, a.Sequence) {
	case GateDuplicate:
		if i := r.pendingIndex(a.SenderID, a.Sequence); i >= 0 {
			r.pending = slices.Delete(r.pending, 0, i+1)
			return Result{Acked: true}, nil
		}
		return Result{}, fmt.Errorf("%w: %s seq %d", ErrDuplicate, a.SenderID, a.Sequence)
	case GateGap:
		return Result{}, fmt.Errorf("%w: %s seq %d after %d", ErrSequenceGap, a.SenderID, a.Sequence, r.gate.Last(a.SenderID))
	}

	next, effects, err := r.check(&r.state, a)
	if err != nil {
		return Result{}, err
	}
	r.state = next
	r.gate.Commit(a.SenderID, a.Sequence)
	return Result{Effects: effects}, nil
}

func (r *Replica) pendingIndex(sender domain.PlayerID, seq uint32) int {
	for i, p := range r.pending {
		if p.SenderID == sender && p.Sequence == seq {
			return i
		}
	}
	return -1
}

// check は手番・権限・ルールを検証し、適用後の状態を返します。s は変更しません。
func (r *Replica) check(s *domain.GameState, a turn.Action) (domain.GameState, []turn.Effect, error) {
	if a.Kind().TurnScoped() && a.TurnNumber != s.TurnNumber {
		return *s, nil, fmt.Errorf("%w: %s for turn %d, now %d", ErrStaleTurn, a.Kind(), a.TurnNumber, s.TurnNumber)
	}
	if err := r.authorize(s, a); err != nil {
		return *s, nil, err
	}
	return r.cfg.Machine.Apply(*s, a)
}

func (r *Replica) authorize(s *domain.GameState, a turn.Action) error {
	sender := a.SenderID
	fromAuthority := sender == r.cfg.AuthorityID
	if seat, ok := s.SeatOf(sender); ok && s.Players[seat].Status == domain.StatusForfeited {
		return fmt.Errorf("%w: %s has forfeited", ErrUnauthorized, sender)
	}
	isCurrent := s.Players[s.Current].ID == sender

	var allowed bool
	switch p := a.Payload.(type) {
	case turn.RollDice, turn.MovePawn:
		allowed = isCurrent
	case turn.AdvanceTurn:
		allowed = (p.Timeout && fromAuthority) || (!p.Timeout && isCurrent)
	case turn.ResolveEvent:
		allowed = true
		if ev := s.Event; ev != nil {
			seat, _ := s.SeatOf(sender)
			slot, ok := ev.Participant(seat)
			allowed = ok && !ev.Submitted[slot]
		}
	case turn.Forfeit:
		allowed = fromAuthority || sender == p.PlayerID
	case turn.Presence:
		allowed = fromAuthority
	}
	if !allowed {
		return fmt.Errorf("%w: %s from %s", ErrUnauthorized, a.Kind(), sender)
	}
	return nil
}

func (r *Replica) receiveCheckpoint(sender domain.PlayerID, p turn.Checkpoint) (Result, error) {
	if r.IsAuthority() {
		return Result{}, fmt.Errorf("%w: checkpoint sent to the authority", ErrUnauthorized)
	}
	cp, err := DecodeCheckpoint(p.Data)
	if err != nil {
		return Result{}, err
	}
	return r.Adopt(cp, sender == r.cfg.AuthorityID)
}

// Checkpoint は現在の状態と適用済みシーケンスのスナップショットです。
func (r *Replica) Checkpoint() Checkpoint {
	return Capture(r.state, r.gate.Snapshot())
}

// CheckpointAction は配信用のチェックポイントアクションです。シーケンス0でゲートを通りません。
func (r *Replica) CheckpointAction() turn.Action {
	return turn.Action{
		SenderID:   r.cfg.Self,
		TurnNumber: r.state.TurnNumber,
		Payload:    turn.Checkpoint{Data: r.Checkpoint().Encode()},
	}
}

// Adopt はチェックポイントで状態を丸ごと置き換えます。
// 権威のチェックポイントは常に、それ以外はターン番号が進んでいるときだけ採用します。
// 権威のチェックポイントが LastSeq で含めていない自分のアクションは権威に届いていないので、
// 再送せずに捨てます。ピアのチェックポイントのときだけ、未確認のアクションをチェックポイントの
// ターン以前のものに限って再適用し、失敗したものとそれ以降は捨てます。
func (r *Replica) Adopt(cp Checkpoint, fromAuthority bool) (Result, error) {
	if !fromAuthority && cp.TurnNumber <= r.state.TurnNumber {
		return Result{}, nil
	}
	restored, err := Restore(r.roster, cp)
	if err != nil {
		return Result{}, err
	}
	before := Checksum(r.state)

	r.gate.Reset(cp.LastSeq)
	replay := r.pending
	r.pending = nil
	if fromAuthority {
		replay = nil
	}
	for _, a := range replay {
		if a.Sequence <= r.gate.Last(a.SenderID) || a.TurnNumber > cp.TurnNumber {
			continue
		}
		if r.gate.Check(a.SenderID, a.Sequence) != GateApply {
			break
		}
		next, _, err := r.check(&restored, a)
		if err != nil {
			break
		}
		restored = next
		r.gate.Commit(a.SenderID, a.Sequence)
		r.pending = append(r.pending, a)
	}
	r.state = restored

	if Checksum(r.state) != before {
		return Result{Adopted: true}, fmt.Errorf("%w: turn %d", ErrDesyncDetected, cp.TurnNumber)
	}
	return Result{Adopted: true}, nil
}

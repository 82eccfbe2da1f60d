package turn

import (
	"errors"
	"fmt"

	"boardrush/game/board"
	"boardrush/game/content"
	"boardrush/game/domain"
	"boardrush/game/engine"
	"boardrush/game/event"
)

var (
	ErrPhaseMismatch    = errors.New("action not valid in current phase")
	ErrInvalidDice      = errors.New("dice value out of range")
	ErrNotReducible     = errors.New("action is not handled by the reducer")
	ErrUnknownAction    = errors.New("unknown action")
	ErrAlreadyForfeited = errors.New("player already forfeited")
)

// Machine はターン状態機械です。Apply は純粋関数で、入力の状態を変更しません。
type Machine struct {
	Board   *board.Board
	Rules   engine.Rules
	Content content.Table
	Rewards event.Rewards
}

func NewMachine(b *board.Board, rules engine.Rules, table content.Table, rewards event.Rewards) (*Machine, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, errors.New("turn: content table is required")
	}
	return &Machine{Board: b, Rules: rules, Content: table, Rewards: rewards}, nil
}

// NewGame は全コマを Home に置いた初期状態を作ります。
func (m *Machine) NewGame(players []domain.Player, seed uint64) (domain.GameState, error) {
	if err := domain.ValidateRoster(players); err != nil {
		return domain.GameState{}, err
	}
	s := domain.GameState{
		Players:    make([]domain.Player, len(players)),
		Pawns:      make([]domain.Pawn, 0, len(players)*domain.PawnsPerPlayer),
		Phase:      domain.PhaseIdle,
		TurnNumber: 1,
		Winner:     -1,
		Seed:       seed,
	}
	copy(s.Players, players)
	for i := range s.Players {
		s.Players[i].Status = domain.StatusActive
		for id := uint8(1); id <= domain.PawnsPerPlayer; id++ {
			s.Pawns = append(s.Pawns, domain.Pawn{ID: id, Owner: s.Players[i].Color, Pos: domain.Home()})
		}
	}
	return s, nil
}

// Apply は action を適用した新しい状態と、呼び出し側が実行すべき Effect を返します。
// エラーのときは入力の状態をそのまま返します。
func (m *Machine) Apply(s domain.GameState, a Action) (domain.GameState, []Effect, error) {
	if s.Phase == domain.PhaseGameOver {
		return s, nil, fmt.Errorf("%w: game is over", ErrPhaseMismatch)
	}
	switch p := a.Payload.(type) {
	case RollDice:
		return m.rollDice(s, p)
	case MovePawn:
		return m.movePawn(s, p)
	case ResolveEvent:
		return m.resolveEvent(s, a.SenderID, p)
	case AdvanceTurn:
		return m.advanceTurn(s, p)
	case Forfeit:
		return m.forfeit(s, p)
	case Presence:
		return m.presence(s, p)
	case Checkpoint:
		return s, nil, ErrNotReducible
	default:
		return s, nil, fmt.Errorf("%w: %T", ErrUnknownAction, a.Payload)
	}
}

func phaseError(k Kind, phase domain.Phase) error {
	return fmt.Errorf("%w: %s in %s", ErrPhaseMismatch, k, phase)
}

func (m *Machine) rollDice(s domain.GameState, p RollDice) (domain.GameState, []Effect, error) {
	if s.Phase != domain.PhaseIdle {
		return s, nil, phaseError(KindRollDice, s.Phase)
	}
	if p.Value < 1 || p.Value > 6 {
		return s, nil, fmt.Errorf("%w: %d", ErrInvalidDice, p.Value)
	}
	next := s.Clone()
	next.Dice = int(p.Value)
	next.Phase = domain.PhaseRolling

	color := next.CurrentPlayer().Color
	moves := engine.LegalMoves(m.Board, m.Rules, &next, color, next.Dice)
	effects := []Effect{DiceRolledEffect{Seat: next.Current, Value: next.Dice, LegalMoves: len(moves)}}
	if len(moves) == 0 {
		return next, m.enterEnding(&next, effects), nil
	}
	next.Phase = domain.PhaseMoving
	return next, effects, nil
}

func (m *Machine) movePawn(s domain.GameState, p MovePawn) (domain.GameState, []Effect, error) {
	if s.Phase != domain.PhaseMoving {
		return s, nil, phaseError(KindMovePawn, s.Phase)
	}
	color := s.CurrentPlayer().Color
	next, res, err := engine.ApplyMove(m.Board, m.Rules, s, color, p.PawnID)
	if err != nil {
		return s, nil, err
	}

	mover := domain.PawnRef{Color: color, PawnID: p.PawnID}
	effects := []Effect{MoveEffect{Seat: next.Current, Move: res.Move}}
	if res.Captured != nil {
		effects = append(effects, CaptureEffect{By: mover, Victim: *res.Captured})
	}
	if res.Finished {
		effects = append(effects, FinishEffect{Pawn: mover, Count: next.Finished[color]})
	}
	if res.Victory || res.Move.Event == domain.EventNone {
		return next, m.enterEnding(&next, effects), nil
	}

	difficulty := event.Difficulty(m.Board.Progress(color, res.Move.To))
	ev, used, ok := event.Open(m.Content, &next, res.Move.Event, next.Current, difficulty)
	if !ok {
		return next, m.enterEnding(&next, effects), nil
	}
	next.Event = ev
	next.Used = used
	next.Phase = domain.PhaseEvent
	effects = append(effects, EventOpenedEffect{Event: *ev.Clone()})
	return next, effects, nil
}

func (m *Machine) resolveEvent(s domain.GameState, sender domain.PlayerID, p ResolveEvent) (domain.GameState, []Effect, error) {
	if s.Phase != domain.PhaseEvent || s.Event == nil {
		return s, nil, phaseError(KindResolveEvent, s.Phase)
	}
	seat, ok := s.SeatOf(sender)
	if !ok {
		return s, nil, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, sender)
	}
	ev, out, err := event.Resolve(m.Content, m.Rewards, s.Event, seat, event.Submission{Choice: p.Choice, Answers: p.Answers})
	if err != nil {
		return s, nil, err
	}
	next := s.Clone()
	next.Event = ev
	if !out.Done {
		return next, nil, nil
	}
	effects := m.settleEvent(&next, out)
	return next, m.enterEnding(&next, effects), nil
}

// settleEvent はイベント結果の報酬を残高に反映し、イベントを閉じます。
func (m *Machine) settleEvent(next *domain.GameState, out event.Outcome) []Effect {
	resolved := EventResolvedEffect{Type: next.Event.Type, Draw: out.Draw, Scores: out.Scores}
	if out.Winner >= 0 {
		id := next.Players[out.Winner].ID
		resolved.WinnerID = &id
	}
	effects := []Effect{resolved}
	for _, r := range out.Rewards {
		player := &next.Players[r.Seat]
		tokens := r.Tokens
		if player.TokenBalance+tokens < 0 {
			tokens = -player.TokenBalance
		}
		player.TokenBalance += tokens
		if tokens != 0 || r.XP != 0 {
			effects = append(effects, RewardEffect{PlayerID: player.ID, Tokens: tokens, XP: r.XP})
		}
	}
	next.Event = nil
	return effects
}

func (m *Machine) advanceTurn(s domain.GameState, p AdvanceTurn) (domain.GameState, []Effect, error) {
	if !p.Timeout && s.Phase != domain.PhaseEnding {
		return s, nil, phaseError(KindAdvanceTurn, s.Phase)
	}
	next := s.Clone()
	extra := !p.Timeout && m.Rules.ExtraTurnOnSix && s.Dice == 6 &&
		next.CurrentPlayer().Status == domain.StatusActive
	return next, m.startTurn(&next, extra, nil), nil
}

// startTurn は次の手番を始めます。未解決のイベントは報酬なしで破棄します。
func (m *Machine) startTurn(next *domain.GameState, sameSeat bool, effects []Effect) []Effect {
	if next.Event != nil {
		effects = append(effects, EventCancelledEffect{Type: next.Event.Type})
		next.Event = nil
	}
	if !sameSeat {
		next.Current, _ = next.NextActive(next.Current)
	}
	next.Dice = 0
	next.Phase = domain.PhaseIdle
	next.TurnNumber++
	return append(effects, TurnStartedEffect{
		Seat:     next.Current,
		PlayerID: next.Players[next.Current].ID,
		Turn:     next.TurnNumber,
	})
}

func (m *Machine) forfeit(s domain.GameState, p Forfeit) (domain.GameState, []Effect, error) {
	seat, ok := s.SeatOf(p.PlayerID)
	if !ok {
		return s, nil, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, p.PlayerID)
	}
	if s.Players[seat].Status == domain.StatusForfeited {
		return s, nil, fmt.Errorf("%w: %s", ErrAlreadyForfeited, p.PlayerID)
	}
	next := s.Clone()
	next.Players[seat].Status = domain.StatusForfeited
	effects := []Effect{ForfeitEffect{PlayerID: p.PlayerID}}

	if count, last := next.InGameCount(); count <= 1 {
		next.Event = nil
		return next, m.gameOver(&next, last, effects), nil
	}

	if ev := next.Event; ev != nil && seat == ev.Opponent {
		abandoned, out := event.Abandon(m.Rewards, ev, seat)
		next.Event = abandoned
		if out.Done {
			effects = append(effects, m.settleEvent(&next, out)...)
			return next, m.enterEnding(&next, effects), nil
		}
	}
	if seat == next.Current {
		return next, m.startTurn(&next, false, effects), nil
	}
	return next, effects, nil
}

func (m *Machine) presence(s domain.GameState, p Presence) (domain.GameState, []Effect, error) {
	seat, ok := s.SeatOf(p.PlayerID)
	if !ok {
		return s, nil, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, p.PlayerID)
	}
	status := domain.StatusDisconnected
	if p.Connected {
		status = domain.StatusActive
	}
	if cur := s.Players[seat].Status; cur == domain.StatusForfeited || cur == status {
		return s, nil, nil
	}
	next := s.Clone()
	next.Players[seat].Status = status
	return next, []Effect{PresenceEffect{PlayerID: p.PlayerID, Connected: p.Connected}}, nil
}

// enterEnding は Ending に入り、勝者がいればそのまま GameOver にします。
func (m *Machine) enterEnding(next *domain.GameState, effects []Effect) []Effect {
	next.Phase = domain.PhaseEnding
	color, ok := engine.Winner(next, m.Rules)
	if !ok {
		return effects
	}
	seat, _ := next.SeatByColor(color)
	return m.gameOver(next, seat, effects)
}

func (m *Machine) gameOver(next *domain.GameState, seat int, effects []Effect) []Effect {
	next.Phase = domain.PhaseGameOver
	next.Winner = seat
	if seat < 0 {
		return effects
	}
	return append(effects, GameOverEffect{Winner: next.Players[seat].ID})
}

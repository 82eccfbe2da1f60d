package turn

import (
	"boardrush/game/domain"
	"boardrush/game/engine"
)

// Effect は遷移の結果として呼び出し側が実行するものです。Apply 自体は副作用を持ちません。
type Effect interface {
	effect()
}

type DiceRolledEffect struct {
	Seat       int
	Value      int
	LegalMoves int
}

type MoveEffect struct {
	Seat int
	Move engine.Move
}

type CaptureEffect struct {
	By     domain.PawnRef
	Victim domain.PawnRef
}

type FinishEffect struct {
	Pawn  domain.PawnRef
	Count int
}

type EventOpenedEffect struct {
	Event domain.EventInstance
}

// EventResolvedEffect の WinnerID は決闘の勝者で、引き分けと単発イベントでは nil です。
type EventResolvedEffect struct {
	Type     domain.EventType
	WinnerID *domain.PlayerID
	Draw     bool
	Scores   [2]int
}

type EventCancelledEffect struct {
	Type domain.EventType
}

type RewardEffect struct {
	PlayerID domain.PlayerID
	Tokens   int
	XP       int
}

type TurnStartedEffect struct {
	Seat     int
	PlayerID domain.PlayerID
	Turn     uint32
}

type ForfeitEffect struct {
	PlayerID domain.PlayerID
}

type PresenceEffect struct {
	PlayerID  domain.PlayerID
	Connected bool
}

type GameOverEffect struct {
	Winner domain.PlayerID
}

func (DiceRolledEffect) effect()     {}
func (MoveEffect) effect()           {}
func (CaptureEffect) effect()        {}
func (FinishEffect) effect()         {}
func (EventOpenedEffect) effect()    {}
func (EventResolvedEffect) effect()  {}
func (EventCancelledEffect) effect() {}
func (RewardEffect) effect()         {}
func (TurnStartedEffect) effect()    {}
func (ForfeitEffect) effect()        {}
func (PresenceEffect) effect()       {}
func (GameOverEffect) effect()       {}

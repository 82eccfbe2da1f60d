package turn

import (
	"fmt"

	"boardrush/game/domain"
)

// Kind はアクションの種類です。ワイヤ上の1バイトにそのまま載ります。
type Kind uint8

const (
	KindRollDice Kind = iota + 1
	KindMovePawn
	KindResolveEvent
	KindAdvanceTurn
	KindCheckpoint
	KindForfeit
	KindPresence
)

func (k Kind) String() string {
	switch k {
	case KindRollDice:
		return "roll_dice"
	case KindMovePawn:
		return "move_pawn"
	case KindResolveEvent:
		return "resolve_event"
	case KindAdvanceTurn:
		return "advance_turn"
	case KindCheckpoint:
		return "checkpoint"
	case KindForfeit:
		return "forfeit"
	case KindPresence:
		return "presence"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// TurnScoped reports whether the action only makes sense in the turn it was stamped with.
func (k Kind) TurnScoped() bool {
	switch k {
	case KindRollDice, KindMovePawn, KindResolveEvent, KindAdvanceTurn:
		return true
	default:
		return false
	}
}

// Payload はアクション種別ごとの中身です。
type Payload interface {
	Kind() Kind
}

type RollDice struct {
	Value uint8
}

type MovePawn struct {
	PawnID uint8
}

// ResolveEvent は単発イベントなら Choice、決闘なら Answers を使います。
type ResolveEvent struct {
	Choice  uint8
	Answers []uint8
}

// AdvanceTurn の Timeout は権威側が出す時間切れです。
type AdvanceTurn struct {
	Timeout bool
}

// Checkpoint はエンコード済みのチェックポイントをそのまま運びます。
type Checkpoint struct {
	Data []byte
}

type Forfeit struct {
	PlayerID domain.PlayerID
}

type Presence struct {
	PlayerID  domain.PlayerID
	Connected bool
}

func (RollDice) Kind() Kind     { return KindRollDice }
func (MovePawn) Kind() Kind     { return KindMovePawn }
func (ResolveEvent) Kind() Kind { return KindResolveEvent }
func (AdvanceTurn) Kind() Kind  { return KindAdvanceTurn }
func (Checkpoint) Kind() Kind   { return KindCheckpoint }
func (Forfeit) Kind() Kind      { return KindForfeit }
func (Presence) Kind() Kind     { return KindPresence }

// Action は同期の単位です。Sequence は送信者ごとに1から単調増加します。
type Action struct {
	Sequence   uint32
	SenderID   domain.PlayerID
	TurnNumber uint32
	Payload    Payload
}

func (a Action) Kind() Kind {
	if a.Payload == nil {
		return 0
	}
	return a.Payload.Kind()
}

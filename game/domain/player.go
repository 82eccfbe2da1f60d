package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Color はプレイヤーの色（＝席）を表します。
type Color uint8

const (
	ColorRed Color = iota
	ColorBlue
	ColorGreen
	ColorYellow
)

const (
	NumColors      = 4
	PawnsPerPlayer = 4
	MinPlayers     = 2
	MaxPlayers     = NumColors
)

func (c Color) Valid() bool {
	return c < NumColors
}

func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorBlue:
		return "blue"
	case ColorGreen:
		return "green"
	case ColorYellow:
		return "yellow"
	default:
		return fmt.Sprintf("color(%d)", uint8(c))
	}
}

// PlayerID はワイヤ上で16バイトとして運ばれるプレイヤー識別子です。
type PlayerID [16]byte

func NewPlayerID() PlayerID {
	return PlayerID(uuid.New())
}

func ParsePlayerID(s string) (PlayerID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PlayerID{}, fmt.Errorf("parse player id: %w", err)
	}
	return PlayerID(u), nil
}

func PlayerIDFromBytes(b []byte) (PlayerID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return PlayerID{}, fmt.Errorf("player id from bytes: %w", err)
	}
	return PlayerID(u), nil
}

func (id PlayerID) String() string {
	return uuid.UUID(id).String()
}

func (id PlayerID) Bytes() []byte {
	return id[:]
}

func (id PlayerID) IsZero() bool {
	return id == PlayerID{}
}

type PlayerStatus uint8

const (
	StatusActive PlayerStatus = iota
	StatusDisconnected
	StatusForfeited
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDisconnected:
		return "disconnected"
	case StatusForfeited:
		return "forfeited"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Player は1席分のプレイヤー情報です。
// ID, Color, Name, StartupName, IsAI は試合中に変化しません。
type Player struct {
	ID           PlayerID
	Color        Color
	Name         string
	StartupName  string
	IsAI         bool
	TokenBalance int
	Status       PlayerStatus
}

// InGame は棄権していないプレイヤーかどうかを返します。
func (p Player) InGame() bool {
	return p.Status != StatusForfeited
}

// ValidateRoster checks seat count, colour uniqueness and id uniqueness.
func ValidateRoster(players []Player) error {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return fmt.Errorf("%w: %d players", ErrInvalidRoster, len(players))
	}
	var seenColor [NumColors]bool
	seenID := make(map[PlayerID]struct{}, len(players))
	for _, p := range players {
		if !p.Color.Valid() || seenColor[p.Color] {
			return fmt.Errorf("%w: color %s", ErrInvalidRoster, p.Color)
		}
		seenColor[p.Color] = true
		if p.ID.IsZero() {
			return fmt.Errorf("%w: empty player id", ErrInvalidRoster)
		}
		if _, ok := seenID[p.ID]; ok {
			return fmt.Errorf("%w: duplicate player %s", ErrInvalidRoster, p.ID)
		}
		seenID[p.ID] = struct{}{}
	}
	return nil
}

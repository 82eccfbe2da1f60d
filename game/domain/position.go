package domain

import "fmt"

type PositionKind uint8

const (
	PosHome PositionKind = iota
	PosCircuit
	PosFinalPath
	PosFinished
)

// Position はコマの位置です。Kind がタグで、Index は Circuit / FinalPath のときだけ意味を持ちます。
// 値はコンストラクタ経由で作り、Home / Finished の Index は常に0です。
type Position struct {
	Kind  PositionKind
	Index int
}

func Home() Position {
	return Position{Kind: PosHome}
}

func OnCircuit(index int) Position {
	return Position{Kind: PosCircuit, Index: index}
}

func OnFinalPath(index int) Position {
	return Position{Kind: PosFinalPath, Index: index}
}

func Finished() Position {
	return Position{Kind: PosFinished}
}

func (p Position) IsHome() bool     { return p.Kind == PosHome }
func (p Position) IsFinished() bool { return p.Kind == PosFinished }

func (p Position) String() string {
	switch p.Kind {
	case PosHome:
		return "home"
	case PosCircuit:
		return fmt.Sprintf("circuit[%d]", p.Index)
	case PosFinalPath:
		return fmt.Sprintf("final[%d]", p.Index)
	case PosFinished:
		return "finished"
	default:
		return fmt.Sprintf("position(%d,%d)", p.Kind, p.Index)
	}
}

// PawnRef identifies a pawn across the whole board.
type PawnRef struct {
	Color  Color
	PawnID uint8
}

// Pawn の ID は色ごとに 1..PawnsPerPlayer です。
type Pawn struct {
	ID    uint8
	Owner Color
	Pos   Position
}

func (p Pawn) Ref() PawnRef {
	return PawnRef{Color: p.Owner, PawnID: p.ID}
}

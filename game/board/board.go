package board

import (
	"errors"
	"fmt"

	"boardrush/game/domain"
)

const (
	CircuitLength   = 44
	FinalPathLength = 6
	SegmentLength   = CircuitLength / domain.NumColors

	// FinishProgress は Finished に到達したときの相対進捗です。
	FinishProgress = CircuitLength + FinalPathLength - 1

	safeOffset = 8
)

var ErrInvalidBoard = errors.New("invalid board")

// segmentEvents はセグメント先頭からのオフセットごとのイベントです。
var segmentEvents = map[int]domain.EventType{
	2:  domain.EventQuiz,
	4:  domain.EventFunding,
	6:  domain.EventOpportunity,
	7:  domain.EventDuel,
	10: domain.EventChallenge,
}

// Board は周回路・色ごとの入場マス・安全マス・イベントマスの静的な配置です。
// 生成後は読み取り専用です。
type Board struct {
	entries [domain.NumColors]int
	safe    [CircuitLength]bool
	events  [CircuitLength]domain.EventType
}

// Standard は標準盤面を返します。
func Standard() *Board {
	b := &Board{}
	for c := range domain.NumColors {
		entry := c * SegmentLength
		b.entries[c] = entry
		b.safe[entry] = true
		b.safe[(entry+safeOffset)%CircuitLength] = true
		for off, ev := range segmentEvents {
			b.events[entry+off] = ev
		}
	}
	return b
}

func (b *Board) Validate() error {
	for c, entry := range b.entries {
		if entry < 0 || entry >= CircuitLength {
			return fmt.Errorf("%w: entry %d for %s", ErrInvalidBoard, entry, domain.Color(c))
		}
		if !b.safe[entry] {
			return fmt.Errorf("%w: entry %d is not safe", ErrInvalidBoard, entry)
		}
	}
	for cell := range CircuitLength {
		if b.safe[cell] && b.events[cell] != domain.EventNone {
			return fmt.Errorf("%w: cell %d is both safe and %s", ErrInvalidBoard, cell, b.events[cell])
		}
	}
	return nil
}

func (b *Board) EntryCell(c domain.Color) int {
	return b.entries[c]
}

func (b *Board) IsSafe(cell int) bool {
	if cell < 0 || cell >= CircuitLength {
		return false
	}
	return b.safe[cell]
}

func (b *Board) EventAt(cell int) (domain.EventType, bool) {
	if cell < 0 || cell >= CircuitLength {
		return domain.EventNone, false
	}
	ev := b.events[cell]
	return ev, ev != domain.EventNone
}

// Progress は色の入場マスからの相対進捗を返します。Home は -1 です。
func (b *Board) Progress(c domain.Color, pos domain.Position) int {
	switch pos.Kind {
	case domain.PosCircuit:
		return (pos.Index - b.entries[c] + CircuitLength) % CircuitLength
	case domain.PosFinalPath:
		return CircuitLength + pos.Index
	case domain.PosFinished:
		return FinishProgress
	default:
		return -1
	}
}

// PositionAt は Progress の逆変換です。範囲外なら false を返します。
func (b *Board) PositionAt(c domain.Color, progress int) (domain.Position, bool) {
	switch {
	case progress < 0:
		return domain.Home(), progress == -1
	case progress < CircuitLength:
		return domain.OnCircuit((b.entries[c] + progress) % CircuitLength), true
	case progress < FinishProgress:
		return domain.OnFinalPath(progress - CircuitLength), true
	case progress == FinishProgress:
		return domain.Finished(), true
	default:
		return domain.Position{}, false
	}
}

// Advance は盤上のコマを steps 進めた位置を返します。
// Home / Finished のコマと、ゴールを越える移動は false です。
func (b *Board) Advance(c domain.Color, pos domain.Position, steps int) (domain.Position, bool) {
	if steps <= 0 || pos.Kind == domain.PosHome || pos.Kind == domain.PosFinished {
		return domain.Position{}, false
	}
	return b.PositionAt(c, b.Progress(c, pos)+steps)
}

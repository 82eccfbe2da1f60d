package netplay

import (
	"boardrush/game/domain"
)

type GateResult uint8

const (
	GateApply GateResult = iota
	GateDuplicate
	GateGap
)

func (r GateResult) String() string {
	switch r {
	case GateApply:
		return "apply"
	case GateDuplicate:
		return "duplicate"
	default:
		return "gap"
	}
}

// SequenceGate は送信者ごとの適用済みシーケンスを持ちます。
// 次に適用できるのは last+1 だけで、それ以下は重複、それより先は欠落です。
type SequenceGate struct {
	senders []domain.PlayerID
	last    []uint32
}

// NewSequenceGate の senders の並びがチェックポイントの LastSeq のスロット順になります。
func NewSequenceGate(senders []domain.PlayerID) *SequenceGate {
	return &SequenceGate{
		senders: append([]domain.PlayerID(nil), senders...),
		last:    make([]uint32, len(senders)),
	}
}

func (g *SequenceGate) slot(sender domain.PlayerID) int {
	for i, id := range g.senders {
		if id == sender {
			return i
		}
	}
	return -1
}

func (g *SequenceGate) Known(sender domain.PlayerID) bool {
	return g.slot(sender) >= 0
}

func (g *SequenceGate) Check(sender domain.PlayerID, seq uint32) GateResult {
	i := g.slot(sender)
	if i < 0 {
		return GateGap
	}
	switch {
	case seq <= g.last[i]:
		return GateDuplicate
	case seq == g.last[i]+1:
		return GateApply
	default:
		return GateGap
	}
}

func (g *SequenceGate) Commit(sender domain.PlayerID, seq uint32) {
	if i := g.slot(sender); i >= 0 && seq > g.last[i] {
		g.last[i] = seq
	}
}

func (g *SequenceGate) Last(sender domain.PlayerID) uint32 {
	if i := g.slot(sender); i >= 0 {
		return g.last[i]
	}
	return 0
}

// Snapshot returns the per-slot sequences for a checkpoint.
func (g *SequenceGate) Snapshot() []uint32 {
	return append([]uint32(nil), g.last...)
}

// Reset はチェックポイントの LastSeq で置き換えます。足りないスロットは0です。
func (g *SequenceGate) Reset(last []uint32) {
	for i := range g.last {
		g.last[i] = 0
		if i < len(last) {
			g.last[i] = last[i]
		}
	}
}

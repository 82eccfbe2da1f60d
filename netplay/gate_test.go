package netplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"boardrush/game/domain"
)

func TestSequenceGate_Check(t *testing.T) {
	a, b := domain.NewPlayerID(), domain.NewPlayerID()
	g := NewSequenceGate([]domain.PlayerID{a, b})

	assert.Equal(t, GateApply, g.Check(a, 1))
	assert.Equal(t, GateGap, g.Check(a, 2))
	assert.Equal(t, GateDuplicate, g.Check(a, 0))
	assert.Equal(t, GateGap, g.Check(domain.NewPlayerID(), 1))

	g.Commit(a, 1)
	g.Commit(a, 2)
	assert.Equal(t, GateDuplicate, g.Check(a, 2))
	assert.Equal(t, GateApply, g.Check(a, 3))
	assert.Equal(t, GateApply, g.Check(b, 1), "senders are independent")

	g.Commit(a, 1)
	assert.Equal(t, uint32(2), g.Last(a), "commit never moves backwards")
	assert.Equal(t, []uint32{2, 0}, g.Snapshot())

	g.Reset([]uint32{7})
	assert.Equal(t, []uint32{7, 0}, g.Snapshot())
	assert.Equal(t, "gap", GateGap.String())
}

func TestSequenceGate_AppliesEachSequenceOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := domain.NewPlayerID()
		g := NewSequenceGate([]domain.PlayerID{id})
		seqs := rapid.SliceOf(rapid.Uint32Range(0, 20)).Draw(t, "seqs")

		var applied []uint32
		for _, seq := range seqs {
			if g.Check(id, seq) == GateApply {
				g.Commit(id, seq)
				applied = append(applied, seq)
			}
		}
		for i, seq := range applied {
			if seq != uint32(i+1) {
				t.Fatalf("applied %v", applied)
			}
		}
		if g.Last(id) != uint32(len(applied)) {
			t.Fatalf("last = %d, applied %d", g.Last(id), len(applied))
		}
	})
}

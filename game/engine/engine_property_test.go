package engine_test

import (
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"boardrush/game/board"
	"boardrush/game/domain"
	"boardrush/game/engine"
)

// genState はどの非安全マスにも異なる色のコマが同居しない盤面を生成します。
func genState(t *rapid.T, b *board.Board) domain.GameState {
	n := rapid.IntRange(domain.MinPlayers, domain.MaxPlayers).Draw(t, "players")
	colors := make([]domain.Color, n)
	for i := range colors {
		colors[i] = domain.Color(i)
	}
	s := newState(colors...)
	occupant := map[int]domain.Color{}
	for i := range s.Pawns {
		c := s.Pawns[i].Owner
		progress := rapid.IntRange(-1, board.FinishProgress).Draw(t, "progress")
		pos, _ := b.PositionAt(c, progress)
		if pos.Kind == domain.PosCircuit && !b.IsSafe(pos.Index) {
			if other, ok := occupant[pos.Index]; ok && other != c {
				pos = domain.Home()
			} else {
				occupant[pos.Index] = c
			}
		}
		s.Pawns[i].Pos = pos
		if pos.IsFinished() {
			s.Finished[c]++
		}
	}
	return s
}

func TestLegalMoves_Soundness(t *testing.T) {
	b := board.Standard()
	rapid.Check(t, func(t *rapid.T) {
		r := engine.DefaultRules()
		r.AllowStacking = rapid.Bool().Draw(t, "stacking")
		s := genState(t, b)
		seat := rapid.IntRange(0, len(s.Players)-1).Draw(t, "seat")
		color := s.Players[seat].Color
		s.Dice = rapid.IntRange(1, 6).Draw(t, "dice")
		before := s.Clone()

		for _, m := range engine.LegalMoves(b, r, &s, color, s.Dice) {
			next, res, err := engine.ApplyMove(b, r, s, color, m.PawnID)
			if err != nil {
				t.Fatalf("legal move %+v rejected: %v", m, err)
			}
			if !reflect.DeepEqual(s, before) {
				t.Fatalf("ApplyMove mutated its input")
			}
			if len(next.Pawns) != len(s.Pawns) {
				t.Fatalf("pawn count changed")
			}
			cells := map[int]domain.Color{}
			for _, p := range next.Pawns {
				if p.Pos.Kind != domain.PosCircuit || b.IsSafe(p.Pos.Index) {
					continue
				}
				if other, ok := cells[p.Pos.Index]; ok && other != p.Owner {
					t.Fatalf("cell %d shared by %s and %s after %+v", p.Pos.Index, other, p.Owner, res)
				}
				cells[p.Pos.Index] = p.Owner
			}
			finished := 0
			for _, p := range next.PawnsOf(seat) {
				if p.Pos.IsFinished() {
					finished++
				}
			}
			if finished != next.Finished[color] {
				t.Fatalf("finished count %d, pawns say %d", next.Finished[color], finished)
			}
		}
	})
}

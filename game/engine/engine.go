package engine

import (
	"fmt"

	"boardrush/game/board"
	"boardrush/game/domain"
)

// Move は合法手1つ分です。Captures はこの手で取られる相手コマ、Event は着地マスのイベントです。
type Move struct {
	PawnID   uint8
	From     domain.Position
	To       domain.Position
	Captures *domain.PawnRef
	Finishes bool
	Event    domain.EventType
}

// MoveResult は ApplyMove の結果です。
type MoveResult struct {
	Move     Move
	Captured *domain.PawnRef
	Finished bool
	Victory  bool
}

// LegalMoves は color のプレイヤーが dice の出目で指せる手をコマID順に返します。
// 状態は変更しません。
func LegalMoves(b *board.Board, r Rules, s *domain.GameState, color domain.Color, dice int) []Move {
	if dice < 1 || dice > 6 {
		return nil
	}
	seat, ok := s.SeatByColor(color)
	if !ok {
		return nil
	}
	var moves []Move
	for _, pawn := range s.PawnsOf(seat) {
		var to domain.Position
		switch {
		case pawn.Pos.IsHome():
			if dice != r.DiceToExit {
				continue
			}
			to = domain.OnCircuit(b.EntryCell(color))
		default:
			next, ok := b.Advance(color, pawn.Pos, dice)
			if !ok {
				continue
			}
			to = next
		}
		m, ok := landing(b, r, s, color, to)
		if !ok {
			continue
		}
		m.PawnID = pawn.ID
		m.From = pawn.Pos
		moves = append(moves, m)
	}
	return moves
}

// landing は to に着地できるかを判定し、取られるコマとイベントを埋めた Move を返します。
func landing(b *board.Board, r Rules, s *domain.GameState, color domain.Color, to domain.Position) (Move, bool) {
	m := Move{To: to, Finishes: to.IsFinished()}
	if to.Kind != domain.PosCircuit {
		return m, true
	}
	safe := b.IsSafe(to.Index)
	var own int
	var opposing []domain.PawnRef
	for _, p := range s.Pawns {
		if p.Pos != to {
			continue
		}
		if p.Owner == color {
			own++
		} else {
			opposing = append(opposing, p.Ref())
		}
	}
	if own > 0 && !r.AllowStacking {
		return Move{}, false
	}
	if !safe {
		switch len(opposing) {
		case 0:
		case 1:
			victim := opposing[0]
			m.Captures = &victim
		default:
			// blockade
			return Move{}, false
		}
	}
	if ev, ok := b.EventAt(to.Index); ok {
		m.Event = ev
	}
	return m, true
}

// ApplyMove は pawnID のコマを s.Dice だけ動かした新しい状態を返します。
// 合法手でなければ domain.ErrInvalidMove を返し、状態は変わりません。
func ApplyMove(b *board.Board, r Rules, s domain.GameState, color domain.Color, pawnID uint8) (domain.GameState, MoveResult, error) {
	var move *Move
	for _, m := range LegalMoves(b, r, &s, color, s.Dice) {
		if m.PawnID == pawnID {
			move = &m
			break
		}
	}
	if move == nil {
		return s, MoveResult{}, fmt.Errorf("%w: pawn %d of %s with dice %d", domain.ErrInvalidMove, pawnID, color, s.Dice)
	}

	next := s.Clone()
	idx, _ := next.PawnIndex(color, pawnID)
	next.Pawns[idx].Pos = move.To

	result := MoveResult{Move: *move}
	if move.Captures != nil {
		victim, ok := next.PawnIndex(move.Captures.Color, move.Captures.PawnID)
		if ok {
			next.Pawns[victim].Pos = domain.Home()
			result.Captured = move.Captures
		}
	}
	if move.Finishes {
		next.Finished[color]++
		result.Finished = true
		result.Victory = next.Finished[color] >= r.TokensToFinish
	}
	return next, result, nil
}

// Winner は TokensToFinish 個をゴールさせた色を返します。
func Winner(s *domain.GameState, r Rules) (domain.Color, bool) {
	for _, p := range s.Players {
		if s.Finished[p.Color] >= r.TokensToFinish {
			return p.Color, true
		}
	}
	return 0, false
}

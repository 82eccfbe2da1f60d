package application

import (
	"math/rand/v2"

	"boardrush/game/content"
	game "boardrush/game/domain"
	"boardrush/game/engine"
	"boardrush/game/event"
	"boardrush/game/turn"
)

// 手の優先度。同点ならコマIDの小さい方。
const (
	scoreCapture = 1000
	scoreFinish  = 800
	scoreExit    = 600
	scoreEvent   = 400
)

// RuleBotController はルールベースのボットAIです。
// ボットごとに異なる個性パラメータを持ちます。
type RuleBotController struct {
	machine *turn.Machine
	rng     *rand.Rand

	Skill    float64 // クイズ・決闘で正解する確率
	Appetite float64 // 払える投資機会を受ける確率
}

// NewRuleBotController はランダムな個性を持つボットAIを生成します。
func NewRuleBotController(m *turn.Machine) *RuleBotController {
	return &RuleBotController{
		machine:  m,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		Skill:    0.5 + rand.Float64()*0.4, // 0.5〜0.9
		Appetite: 0.6 + rand.Float64()*0.4, // 0.6〜1.0
	}
}

func RuleBotFactory(m *turn.Machine) BotFactory {
	return func() BotController {
		return NewRuleBotController(m)
	}
}

func (r *RuleBotController) Decide(s *game.GameState, self game.PlayerID) (turn.Payload, bool) {
	if s.Phase == game.PhaseGameOver {
		return nil, false
	}
	seat, ok := s.SeatOf(self)
	if !ok || s.Players[seat].Status == game.StatusForfeited {
		return nil, false
	}

	// イベントは手番でない決闘相手も答える
	if s.Phase == game.PhaseEvent {
		return r.answer(s, seat)
	}
	if s.Current != seat {
		return nil, false
	}

	switch s.Phase {
	case game.PhaseIdle:
		return turn.RollDice{Value: uint8(r.rng.IntN(6) + 1)}, true
	case game.PhaseMoving:
		return r.choosePawn(s, seat)
	case game.PhaseEnding:
		return turn.AdvanceTurn{}, true
	default:
		return nil, false
	}
}

// choosePawn は捕獲、ゴール、出陣、イベントマスの順に優先し、なければ一番進んだ位置に着くコマを選びます。
func (r *RuleBotController) choosePawn(s *game.GameState, seat int) (turn.Payload, bool) {
	color := s.Players[seat].Color
	moves := engine.LegalMoves(r.machine.Board, r.machine.Rules, s, color, s.Dice)
	if len(moves) == 0 {
		return nil, false
	}
	best, bestScore := moves[0], -1
	for _, m := range moves {
		score := r.machine.Board.Progress(color, m.To)
		switch {
		case m.Captures != nil:
			score += scoreCapture
		case m.Finishes:
			score += scoreFinish
		case m.From.IsHome():
			score += scoreExit
		case m.Event != game.EventNone:
			score += scoreEvent
		}
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	return turn.MovePawn{PawnID: best.PawnID}, true
}

func (r *RuleBotController) answer(s *game.GameState, seat int) (turn.Payload, bool) {
	ev := s.Event
	if ev == nil {
		return nil, false
	}
	slot, ok := ev.Participant(seat)
	if !ok || ev.Submitted[slot] {
		return nil, false
	}
	table := r.machine.Content

	if ev.Type == game.EventDuel {
		answers := make([]uint8, len(ev.Content))
		for i, idx := range ev.Content {
			item, _ := table.Lookup(game.EventDuel, idx)
			answers[i] = r.pick(item)
		}
		return turn.ResolveEvent{Answers: answers}, true
	}

	item, ok := table.Lookup(ev.Type, ev.Content[0])
	if !ok {
		return turn.ResolveEvent{}, true
	}
	switch ev.Type {
	case game.EventQuiz:
		return turn.ResolveEvent{Choice: r.pick(item)}, true
	case game.EventOpportunity:
		if s.Players[seat].TokenBalance >= item.Cost && r.rng.Float64() < r.Appetite {
			return turn.ResolveEvent{Choice: event.ChoiceAccept}, true
		}
		return turn.ResolveEvent{Choice: event.ChoiceDecline}, true
	case game.EventChallenge:
		return turn.ResolveEvent{Choice: event.ChoiceAccept}, true
	default:
		return turn.ResolveEvent{}, true
	}
}

// pick は Skill の確率で正解を、外すときは別の選択肢を返します。
func (r *RuleBotController) pick(item content.Item) uint8 {
	if len(item.Options) < 2 || r.rng.Float64() < r.Skill {
		return uint8(item.Answer)
	}
	wrong := r.rng.IntN(len(item.Options) - 1)
	if wrong >= item.Answer {
		wrong++
	}
	return uint8(wrong)
}

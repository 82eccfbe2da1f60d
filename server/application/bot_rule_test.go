package application

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	game "boardrush/game/domain"
	"boardrush/game/engine"
	"boardrush/game/event"
	"boardrush/game/turn"
)

func newTestBot(t *testing.T, skill, appetite float64) *RuleBotController {
	t.Helper()
	bot := NewRuleBotController(testMachine(t))
	bot.rng = rand.New(rand.NewPCG(1, 2))
	bot.Skill = skill
	bot.Appetite = appetite
	return bot
}

func botState(t *testing.T, bot *RuleBotController) (game.GameState, []game.Player) {
	t.Helper()
	roster := []game.Player{
		{ID: game.NewPlayerID(), Color: game.ColorRed, Name: "red", IsAI: true},
		{ID: game.NewPlayerID(), Color: game.ColorBlue, Name: "blue"},
	}
	s, err := bot.machine.NewGame(roster, 7)
	require.NoError(t, err)
	return s, roster
}

func TestRuleBot_RollsOnlyOnItsTurn(t *testing.T) {
	bot := newTestBot(t, 1, 1)
	s, roster := botState(t, bot)

	p, ok := bot.Decide(&s, roster[0].ID)
	require.True(t, ok)
	roll, isRoll := p.(turn.RollDice)
	require.True(t, isRoll)
	assert.True(t, roll.Value >= 1 && roll.Value <= 6)

	_, ok = bot.Decide(&s, roster[1].ID)
	assert.False(t, ok)

	s.Phase = game.PhaseEnding
	p, ok = bot.Decide(&s, roster[0].ID)
	assert.True(t, ok)
	assert.Equal(t, turn.AdvanceTurn{}, p)

	s.Phase = game.PhaseGameOver
	_, ok = bot.Decide(&s, roster[0].ID)
	assert.False(t, ok)
}

func TestRuleBot_ChoosePawn(t *testing.T) {
	tests := []struct {
		name  string
		dice  int
		place map[int]game.Position // pawn index -> position
		want  uint8
	}{
		{
			name:  "capture first",
			dice:  3,
			place: map[int]game.Position{0: game.OnCircuit(1), 1: game.OnCircuit(20), 4: game.OnCircuit(4)},
			want:  1,
		},
		{
			name:  "exit before event cell",
			dice:  6,
			place: map[int]game.Position{0: game.OnCircuit(1)},
			want:  2,
		},
		{
			name:  "furthest otherwise",
			dice:  2,
			place: map[int]game.Position{0: game.OnCircuit(1), 1: game.OnCircuit(20)},
			want:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := newTestBot(t, 1, 1)
			s, roster := botState(t, bot)
			for idx, pos := range tt.place {
				s.Pawns[idx].Pos = pos
			}
			s.Phase = game.PhaseMoving
			s.Dice = tt.dice
			require.NotEmpty(t, engine.LegalMoves(bot.machine.Board, bot.machine.Rules, &s, game.ColorRed, tt.dice))

			p, ok := bot.Decide(&s, roster[0].ID)
			require.True(t, ok)
			assert.Equal(t, turn.MovePawn{PawnID: tt.want}, p)
		})
	}
}

func eventState(t *testing.T, bot *RuleBotController, typ game.EventType, count int) (game.GameState, []game.Player) {
	t.Helper()
	s, roster := botState(t, bot)
	pool := bot.machine.Content.Pool(typ)
	require.GreaterOrEqual(t, len(pool), count, "default pack has %s items", typ)
	ev := &game.EventInstance{Type: typ, Owner: 0, Opponent: -1}
	if typ == game.EventDuel {
		ev.Opponent = 1
	}
	for i := range count {
		ev.Content = append(ev.Content, uint16(i))
	}
	s.Phase = game.PhaseEvent
	s.Event = ev
	return s, roster
}

func TestRuleBot_AnswersQuiz(t *testing.T) {
	for _, skill := range []float64{0, 1} {
		bot := newTestBot(t, skill, 1)
		s, roster := eventState(t, bot, game.EventQuiz, 1)
		item, _ := bot.machine.Content.Lookup(game.EventQuiz, 0)

		p, ok := bot.Decide(&s, roster[0].ID)
		require.True(t, ok)
		choice := p.(turn.ResolveEvent).Choice
		if skill == 1 {
			assert.Equal(t, uint8(item.Answer), choice)
		} else {
			assert.NotEqual(t, uint8(item.Answer), choice)
			assert.Less(t, int(choice), len(item.Options))
		}
	}
}

func TestRuleBot_DuelOpponentAnswersToo(t *testing.T) {
	bot := newTestBot(t, 1, 1)
	s, roster := eventState(t, bot, game.EventDuel, event.DuelQuestions)

	// 決闘の相手は手番でなくても答える
	p, ok := bot.Decide(&s, roster[1].ID)
	require.True(t, ok)
	answers := p.(turn.ResolveEvent).Answers
	require.Len(t, answers, event.DuelQuestions)
	for i, idx := range s.Event.Content {
		item, _ := bot.machine.Content.Lookup(game.EventDuel, idx)
		assert.Equal(t, uint8(item.Answer), answers[i])
	}

	s.Event.Submitted[1] = true
	_, ok = bot.Decide(&s, roster[1].ID)
	assert.False(t, ok, "already submitted")
}

func TestRuleBot_OpportunityNeedsFunds(t *testing.T) {
	bot := newTestBot(t, 1, 1)
	s, roster := eventState(t, bot, game.EventOpportunity, 1)
	item, _ := bot.machine.Content.Lookup(game.EventOpportunity, 0)
	if item.Cost == 0 {
		t.Skip("first opportunity in the default pack is free")
	}

	s.Players[0].TokenBalance = item.Cost - 1
	p, _ := bot.Decide(&s, roster[0].ID)
	assert.Equal(t, turn.ResolveEvent{Choice: event.ChoiceDecline}, p)

	s.Players[0].TokenBalance = item.Cost
	p, _ = bot.Decide(&s, roster[0].ID)
	assert.Equal(t, turn.ResolveEvent{Choice: event.ChoiceAccept}, p)
}

func TestRuleBot_PlaysLegalActions(t *testing.T) {
	m := testMachine(t)
	roster := []game.Player{
		{ID: game.NewPlayerID(), Color: game.ColorRed, IsAI: true},
		{ID: game.NewPlayerID(), Color: game.ColorBlue, IsAI: true},
		{ID: game.NewPlayerID(), Color: game.ColorGreen, IsAI: true},
	}
	s, err := m.NewGame(roster, 3)
	require.NoError(t, err)
	bots := make(map[game.PlayerID]*RuleBotController)
	for _, p := range roster {
		bots[p.ID] = NewRuleBotController(m)
	}

	for step := 0; step < 5000 && s.Phase != game.PhaseGameOver; step++ {
		acted := false
		for _, p := range roster {
			payload, ok := bots[p.ID].Decide(&s, p.ID)
			if !ok {
				continue
			}
			next, _, err := m.Apply(s, turn.Action{SenderID: p.ID, TurnNumber: s.TurnNumber, Payload: payload})
			require.NoError(t, err, "step %d: %s by %s", step, payload.Kind(), p.Color)
			s = next
			acted = true
			break
		}
		require.True(t, acted, "step %d: nobody can act in %s", step, s.Phase)
	}
}

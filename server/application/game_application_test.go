package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"boardrush/game/board"
	"boardrush/game/content"
	game "boardrush/game/domain"
	"boardrush/game/engine"
	"boardrush/game/event"
	"boardrush/game/turn"
	"boardrush/netplay"
	"boardrush/profile"
	"boardrush/profile/mocks"
	"boardrush/server/domain"
)

type fakeOutbox struct {
	mu         sync.Mutex
	broadcasts [][]byte
	unicasts   map[game.PlayerID][][]byte
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{unicasts: make(map[game.PlayerID][][]byte)}
}

func (o *fakeOutbox) EnqueueBroadcast(_ context.Context, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.broadcasts = append(o.broadcasts, data)
	return nil
}

func (o *fakeOutbox) EnqueueSendTo(_ context.Context, player game.PlayerID, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unicasts[player] = append(o.unicasts[player], data)
	return nil
}

func (o *fakeOutbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.broadcasts = nil
	o.unicasts = make(map[game.PlayerID][][]byte)
}

func frames(t *testing.T, data [][]byte) []*netplay.Frame {
	t.Helper()
	out := make([]*netplay.Frame, 0, len(data))
	for _, d := range data {
		f, err := netplay.ParseFrame(d)
		require.NoError(t, err)
		out = append(out, f)
	}
	return out
}

func actionKinds(t *testing.T, data [][]byte) []turn.Kind {
	t.Helper()
	var kinds []turn.Kind
	for _, f := range frames(t, data) {
		if f.Payload.DataType != netplay.DataTypeAction {
			continue
		}
		a, err := netplay.DecodeAction(f)
		require.NoError(t, err)
		kinds = append(kinds, a.Kind())
	}
	return kinds
}

func testMachine(t *testing.T) *turn.Machine {
	t.Helper()
	table, err := content.Default()
	require.NoError(t, err)
	m, err := turn.NewMachine(board.Standard(), engine.DefaultRules(), table, event.DefaultRewards())
	require.NoError(t, err)
	return m
}

type testApp struct {
	*GameApplication
	out    *fakeOutbox
	store  *mocks.MockStore
	roster []game.Player
	clock  time.Time
}

func newTestApp(t *testing.T, ai ...bool) *testApp {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	out := newFakeOutbox()
	m := testMachine(t)
	cfg := Config{
		Machine:            m,
		Profiles:           store,
		Bots:               RuleBotFactory(m),
		TurnTimeout:        30 * time.Second,
		ForfeitGrace:       60 * time.Second,
		CheckpointInterval: 10 * time.Second,
		BotDelay:           time.Second,
	}
	ta := &testApp{
		GameApplication: NewGameApplication(domain.NewRoomID(), out, cfg),
		out:             out,
		store:           store,
		clock:           time.Unix(1_700_000_000, 0),
	}
	ta.seed = func() (uint64, error) { return 42, nil }
	ta.now = func() time.Time { return ta.clock }
	for i, isAI := range ai {
		ta.roster = append(ta.roster, game.Player{ID: game.NewPlayerID(), Color: game.Color(i), Name: "p", IsAI: isAI})
	}
	return ta
}

func (ta *testApp) start(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, p := range ta.roster {
		if !p.IsAI {
			ta.Join(ctx, p.ID)
		}
	}
	require.NoError(t, ta.Start(ctx, ta.roster))
}

func (ta *testApp) advance(d time.Duration) {
	ta.clock = ta.clock.Add(d)
	ta.Tick(context.Background(), ta.clock)
}

func (ta *testApp) send(t *testing.T, sender game.PlayerID, seq uint32, p turn.Payload) []byte {
	t.Helper()
	state, _ := ta.State()
	data, err := netplay.EncodeAction(turn.Action{Sequence: seq, SenderID: sender, TurnNumber: state.TurnNumber, Payload: p})
	require.NoError(t, err)
	require.NoError(t, ta.HandleMessage(context.Background(), sender, data))
	return data
}

func TestGameApplication_StartBroadcastsRosterAndCheckpoint(t *testing.T) {
	ta := newTestApp(t, false, false)
	ta.start(t)

	got := frames(t, ta.out.broadcasts)
	require.Len(t, got, 2)
	require.True(t, got[0].IsControl(netplay.ControlSubTypeStart))
	start, err := netplay.ParseStartPayload(got[0].Body)
	require.NoError(t, err)
	assert.Equal(t, ta.AuthorityID(), start.AuthorityID)
	assert.Len(t, start.Roster, 2)

	a, err := netplay.DecodeAction(got[1])
	require.NoError(t, err)
	cp, err := netplay.DecodeCheckpoint(a.Payload.(turn.Checkpoint).Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cp.Seed)
	assert.Equal(t, uint32(1), cp.TurnNumber)

	assert.ErrorIs(t, ta.Start(context.Background(), ta.roster), ErrAlreadyStarted)
}

func TestGameApplication_AbsentPlayersStartDisconnected(t *testing.T) {
	ta := newTestApp(t, false, false)
	ta.Join(context.Background(), ta.roster[0].ID)
	require.NoError(t, ta.Start(context.Background(), ta.roster))

	state, _ := ta.State()
	assert.Equal(t, game.StatusActive, state.Players[0].Status)
	assert.Equal(t, game.StatusDisconnected, state.Players[1].Status)
	assert.Equal(t, []turn.Kind{turn.KindPresence, turn.KindCheckpoint}, actionKinds(t, ta.out.broadcasts))
}

func TestGameApplication_HandleMessage(t *testing.T) {
	ta := newTestApp(t, false, false)
	ta.start(t)
	first, second := ta.roster[0].ID, ta.roster[1].ID
	ta.out.reset()

	t.Run("accepted action is rebroadcast", func(t *testing.T) {
		data := ta.send(t, first, 1, turn.RollDice{Value: 1})
		require.Len(t, ta.out.broadcasts, 1)
		assert.Equal(t, data, ta.out.broadcasts[0])
		state, _ := ta.State()
		assert.Equal(t, game.PhaseEnding, state.Phase, "nothing can leave home with a 1")
	})

	t.Run("unauthorized action is dropped silently with a checkpoint", func(t *testing.T) {
		ta.out.reset()
		ta.send(t, second, 1, turn.RollDice{Value: 6})
		assert.Empty(t, ta.out.broadcasts)
		replies := frames(t, ta.out.unicasts[second])
		require.Len(t, replies, 1)
		assert.False(t, replies[0].IsControl(netplay.ControlSubTypeError))
		assert.Equal(t, []turn.Kind{turn.KindCheckpoint}, actionKinds(t, ta.out.unicasts[second]))
	})

	t.Run("rule violation gets an error and a checkpoint", func(t *testing.T) {
		ta.out.reset()
		ta.send(t, first, 2, turn.MovePawn{PawnID: 1})
		assert.Empty(t, ta.out.broadcasts)
		replies := frames(t, ta.out.unicasts[first])
		require.Len(t, replies, 2)
		require.True(t, replies[0].IsControl(netplay.ControlSubTypeError))
		code, _, err := netplay.ParseErrorMessage(replies[0].Body)
		require.NoError(t, err)
		assert.Equal(t, netplay.ErrorCodeRejected, code)
		assert.Equal(t, []turn.Kind{turn.KindCheckpoint}, actionKinds(t, ta.out.unicasts[first]))
	})

	t.Run("duplicate is ignored", func(t *testing.T) {
		ta.out.reset()
		data, err := netplay.EncodeAction(turn.Action{Sequence: 1, SenderID: first, TurnNumber: 1, Payload: turn.RollDice{Value: 1}})
		require.NoError(t, err)
		require.NoError(t, ta.HandleMessage(context.Background(), first, data))
		assert.Empty(t, ta.out.broadcasts)
		assert.Empty(t, ta.out.unicasts)
	})

	t.Run("checkpoint request", func(t *testing.T) {
		ta.out.reset()
		require.NoError(t, ta.HandleMessage(context.Background(), second, netplay.EncodeCheckpointRequest(second)))
		assert.Equal(t, []turn.Kind{turn.KindCheckpoint}, actionKinds(t, ta.out.unicasts[second]))
	})

	t.Run("relayed for someone else", func(t *testing.T) {
		ta.out.reset()
		data, err := netplay.EncodeAction(turn.Action{Sequence: 2, SenderID: first, TurnNumber: 1, Payload: turn.AdvanceTurn{}})
		require.NoError(t, err)
		assert.ErrorIs(t, ta.HandleMessage(context.Background(), second, data), netplay.ErrUnauthorized)
		assert.Empty(t, ta.out.broadcasts)
		assert.Empty(t, ta.out.unicasts, "unauthorized frames are not answered")
	})
}

func TestGameApplication_NotStarted(t *testing.T) {
	ta := newTestApp(t, false, false)
	id := ta.roster[0].ID
	require.NoError(t, ta.HandleMessage(context.Background(), id, netplay.EncodeCheckpointRequest(id)))

	replies := frames(t, ta.out.unicasts[id])
	require.Len(t, replies, 1)
	code, _, err := netplay.ParseErrorMessage(replies[0].Body)
	require.NoError(t, err)
	assert.Equal(t, netplay.ErrorCodeNotStarted, code)
}

func TestGameApplication_TurnTimeout(t *testing.T) {
	ta := newTestApp(t, false, false)
	ta.cfg.CheckpointInterval = 0
	ta.start(t)
	ta.out.reset()

	ta.advance(29 * time.Second)
	assert.Empty(t, actionKinds(t, ta.out.broadcasts))

	ta.advance(time.Second)
	assert.Equal(t, []turn.Kind{turn.KindAdvanceTurn}, actionKinds(t, ta.out.broadcasts))
	state, _ := ta.State()
	assert.Equal(t, uint32(2), state.TurnNumber)
	assert.Equal(t, 1, state.Current)
}

func TestGameApplication_PeriodicCheckpoint(t *testing.T) {
	ta := newTestApp(t, false, false)
	ta.cfg.TurnTimeout = 0
	ta.start(t)
	ta.out.reset()

	ta.advance(5 * time.Second)
	assert.Empty(t, ta.out.broadcasts)
	ta.advance(5 * time.Second)
	assert.Equal(t, []turn.Kind{turn.KindCheckpoint}, actionKinds(t, ta.out.broadcasts))
}

func TestGameApplication_DisconnectReconnectAndForfeit(t *testing.T) {
	ta := newTestApp(t, false, false)
	ta.cfg.TurnTimeout = 0
	ta.cfg.CheckpointInterval = 0
	ta.start(t)
	ctx := context.Background()
	first, second := ta.roster[0].ID, ta.roster[1].ID

	// 切断して猶予内に戻る
	ta.out.reset()
	ta.Leave(ctx, second)
	state, _ := ta.State()
	assert.Equal(t, game.StatusDisconnected, state.Players[1].Status)

	ta.advance(30 * time.Second)
	ta.Join(ctx, second)
	state, _ = ta.State()
	assert.Equal(t, game.StatusActive, state.Players[1].Status)
	assert.Equal(t, []turn.Kind{turn.KindPresence, turn.KindPresence}, actionKinds(t, ta.out.broadcasts))
	resync := frames(t, ta.out.unicasts[second])
	require.Len(t, resync, 2)
	assert.True(t, resync[0].IsControl(netplay.ControlSubTypeStart))

	// 今度は戻らない
	ta.Leave(ctx, second)
	deltas := make(map[game.PlayerID]profile.Delta)
	ta.store.EXPECT().ApplyRewards(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id game.PlayerID, d profile.Delta) error {
			deltas[id] = d
			return nil
		}).Times(2)

	ta.advance(59 * time.Second)
	assert.False(t, ta.Finished())
	ta.advance(time.Second)
	assert.True(t, ta.Finished())

	state, _ = ta.State()
	assert.Equal(t, game.PhaseGameOver, state.Phase)
	assert.Equal(t, game.StatusForfeited, state.Players[1].Status)
	assert.True(t, deltas[first].Win)
	assert.Contains(t, deltas[first].Unlock, profile.UnlockChampion)
	assert.True(t, deltas[second].Played)
	assert.False(t, deltas[second].Win)

	// 終わった後の離脱は何もしない
	ta.out.reset()
	ta.Leave(ctx, first)
	ta.advance(time.Minute)
	assert.Empty(t, ta.out.broadcasts)
}

func TestGameApplication_BotTakesItsTurn(t *testing.T) {
	ta := newTestApp(t, true, false)
	ta.start(t)
	ta.out.reset()

	ta.advance(500 * time.Millisecond)
	assert.Empty(t, actionKinds(t, ta.out.broadcasts), "bots wait BotDelay between actions")

	ta.advance(500 * time.Millisecond)
	assert.Equal(t, []turn.Kind{turn.KindRollDice}, actionKinds(t, ta.out.broadcasts))
	state, _ := ta.State()
	assert.NotEqual(t, game.PhaseIdle, state.Phase)

	// 人間の手番まで進める
	for range 40 {
		if state, _ = ta.State(); state.Current == 1 {
			break
		}
		ta.advance(time.Second)
	}
	assert.Equal(t, 1, state.Current)
}

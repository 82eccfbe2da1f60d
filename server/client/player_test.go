package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardrush/game/board"
	"boardrush/game/content"
	game "boardrush/game/domain"
	"boardrush/game/engine"
	"boardrush/game/event"
	"boardrush/game/turn"
	"boardrush/netplay"
	"boardrush/server/application"
)

type recorder struct {
	frames []*netplay.Frame
}

func (r *recorder) send(_ context.Context, data []byte) error {
	f, err := netplay.ParseFrame(data)
	if err != nil {
		return err
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) last(t *testing.T) *netplay.Frame {
	t.Helper()
	require.NotEmpty(t, r.frames)
	return r.frames[len(r.frames)-1]
}

type fixture struct {
	machine   *turn.Machine
	roster    []game.Player
	authID    game.PlayerID
	authority *netplay.Replica
	out       *recorder
	player    *Player
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table, err := content.Default()
	require.NoError(t, err)
	m, err := turn.NewMachine(board.Standard(), engine.DefaultRules(), table, event.DefaultRewards())
	require.NoError(t, err)

	roster := []game.Player{
		{ID: game.NewPlayerID(), Color: game.ColorRed, Name: "bot", StartupName: "Bot Robotics"},
		{ID: game.NewPlayerID(), Color: game.ColorBlue, Name: "human", StartupName: "Human Inc"},
	}
	state, err := m.NewGame(roster, 7)
	require.NoError(t, err)
	authID := game.NewPlayerID()
	authority, err := netplay.NewReplica(netplay.Config{Self: authID, AuthorityID: authID, Machine: m, Roster: roster}, state)
	require.NoError(t, err)

	out := &recorder{}
	bot := application.NewRuleBotController(m)
	return &fixture{
		machine:   m,
		roster:    roster,
		authID:    authID,
		authority: authority,
		out:       out,
		player:    NewPlayer(roster[0].ID, m, bot, out.send),
	}
}

func (f *fixture) deliver(t *testing.T, data []byte) {
	t.Helper()
	require.NoError(t, f.player.Handle(context.Background(), Inbound(data)))
}

func (f *fixture) deliverAction(t *testing.T, a turn.Action) {
	t.Helper()
	data, err := netplay.EncodeAction(a)
	require.NoError(t, err)
	f.deliver(t, data)
}

func (f *fixture) sync(t *testing.T) {
	t.Helper()
	f.deliver(t, netplay.EncodeStartMessage(f.authID, f.roster))
	f.deliverAction(t, f.authority.CheckpointAction())
	require.NotNil(t, f.player.Replica())
}

func TestPlayer_AssignAndPing(t *testing.T) {
	f := newFixture(t)
	self := f.roster[0].ID

	f.deliver(t, netplay.EncodeAssignMessage(self))
	join := f.out.last(t)
	assert.True(t, join.IsControl(netplay.ControlSubTypeJoin))
	assert.Equal(t, self, join.Sender())

	f.deliver(t, netplay.EncodePingMessage(game.PlayerID{}))
	assert.True(t, f.out.last(t).IsControl(netplay.ControlSubTypePong))

	err := f.player.Handle(context.Background(), Inbound(netplay.EncodeAssignMessage(f.roster[1].ID)))
	assert.ErrorIs(t, err, ErrNoSeat)
}

func TestPlayer_BootstrapsFromAuthorityCheckpoint(t *testing.T) {
	f := newFixture(t)
	f.deliver(t, netplay.EncodeStartMessage(f.authID, f.roster))

	// 権威以外からの最初のアクションではまだ同期できません
	a, _, err := f.authority.Submit(f.authID, turn.Presence{PlayerID: f.roster[1].ID})
	require.NoError(t, err)
	f.deliverAction(t, a)
	f.deliverAction(t, a)
	assert.Nil(t, f.player.Replica())
	require.Len(t, f.out.frames, 1, "checkpoint is requested once")
	assert.True(t, f.out.last(t).IsControl(netplay.ControlSubTypeCheckpointRequest))

	f.deliverAction(t, f.authority.CheckpointAction())
	require.NotNil(t, f.player.Replica())
	assert.Equal(t, f.authority.Checkpoint().Encode(), f.player.Replica().Checkpoint().Encode())
}

func TestPlayer_ActsOnItsTurnAndFinishes(t *testing.T) {
	f := newFixture(t)
	f.sync(t)
	ctx := context.Background()

	require.NoError(t, f.player.Handle(ctx, Tick{}))
	frame := f.out.last(t)
	a, err := netplay.DecodeAction(frame)
	require.NoError(t, err)
	assert.Equal(t, turn.KindRollDice, a.Kind())
	assert.Equal(t, uint32(1), a.Sequence)
	assert.Equal(t, 1, f.player.Replica().Pending())

	_, err = f.authority.Receive(a)
	require.NoError(t, err)
	f.deliverAction(t, a)
	assert.Zero(t, f.player.Replica().Pending(), "echo acknowledges the roll")

	select {
	case <-f.player.Done():
		t.Fatal("done before game over")
	default:
	}

	forfeit, _, err := f.authority.Submit(f.authID, turn.Forfeit{PlayerID: f.roster[1].ID})
	require.NoError(t, err)
	f.deliverAction(t, forfeit)
	assert.Equal(t, game.PhaseGameOver, f.player.Replica().Phase())
	select {
	case <-f.player.Done():
	default:
		t.Fatal("done not closed after game over")
	}

	sent := len(f.out.frames)
	require.NoError(t, f.player.Handle(ctx, Tick{}))
	assert.Len(t, f.out.frames, sent, "no actions after game over")
}

func TestPlayer_RequestsCheckpointOnGap(t *testing.T) {
	f := newFixture(t)
	f.sync(t)
	sent := len(f.out.frames)

	gap := turn.Action{Sequence: 3, SenderID: f.authID, TurnNumber: f.authority.TurnNumber(), Payload: turn.AdvanceTurn{Timeout: true}}
	f.deliverAction(t, gap)
	require.Len(t, f.out.frames, sent+1)
	assert.True(t, f.out.last(t).IsControl(netplay.ControlSubTypeCheckpointRequest))

	require.NoError(t, f.player.Handle(context.Background(), Tick{}))
	assert.Len(t, f.out.frames, sent+1, "waits for the checkpoint before acting")

	f.deliverAction(t, f.authority.CheckpointAction())
	require.NoError(t, f.player.Handle(context.Background(), Tick{}))
	assert.Len(t, f.out.frames, sent+2)
}

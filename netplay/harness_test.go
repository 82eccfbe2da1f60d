package netplay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"boardrush/game/board"
	"boardrush/game/content"
	"boardrush/game/domain"
	"boardrush/game/engine"
	"boardrush/game/event"
	"boardrush/game/turn"
)

type tb interface {
	require.TestingT
	Helper()
}

func testMachine(t tb) *turn.Machine {
	t.Helper()
	table, err := content.Default()
	require.NoError(t, err)
	m, err := turn.NewMachine(board.Standard(), engine.DefaultRules(), table, event.DefaultRewards())
	require.NoError(t, err)
	return m
}

func testRoster(n int) []domain.Player {
	roster := make([]domain.Player, n)
	for i := range roster {
		roster[i] = domain.Player{ID: domain.NewPlayerID(), Color: domain.Color(i), Name: "player"}
	}
	return roster
}

// testNet は権威1つとピア複数をつなぐ同期テスト用のリレーです。
type testNet struct {
	t         *testing.T
	machine   *turn.Machine
	roster    []domain.Player
	authID    domain.PlayerID
	authority *Replica
	peers     map[domain.PlayerID]*Replica
	cut       map[domain.PlayerID]bool
}

func newTestNet(t *testing.T, players int) *testNet {
	t.Helper()
	m := testMachine(t)
	roster := testRoster(players)
	state, err := m.NewGame(roster, 99)
	require.NoError(t, err)

	n := &testNet{
		t:       t,
		machine: m,
		roster:  roster,
		authID:  domain.NewPlayerID(),
		peers:   make(map[domain.PlayerID]*Replica),
		cut:     make(map[domain.PlayerID]bool),
	}
	n.authority, err = NewReplica(Config{Self: n.authID, AuthorityID: n.authID, Machine: m, Roster: roster}, state)
	require.NoError(t, err)
	for _, p := range roster {
		n.peers[p.ID], err = NewReplica(Config{Self: p.ID, AuthorityID: n.authID, Machine: m, Roster: roster}, state)
		require.NoError(t, err)
	}
	return n
}

func (n *testNet) current() domain.PlayerID {
	s := n.authority.State()
	return s.CurrentPlayer().ID
}

// play は peer の意図をローカル適用し、権威を経由して全員に配信します。
func (n *testNet) play(id domain.PlayerID, p turn.Payload) {
	n.t.Helper()
	a, _, err := n.peers[id].Submit(id, p)
	require.NoError(n.t, err, "submit %T", p)
	_, err = n.authority.Receive(a)
	require.NoError(n.t, err, "authority %T", p)
	n.broadcast(a)
}

func (n *testNet) host(p turn.Payload) {
	n.t.Helper()
	a, _, err := n.authority.Submit(n.authID, p)
	require.NoError(n.t, err, "authority submit %T", p)
	n.broadcast(a)
}

func (n *testNet) broadcast(a turn.Action) {
	n.t.Helper()
	for id, peer := range n.peers {
		if n.cut[id] {
			continue
		}
		_, err := peer.Receive(a)
		require.NoError(n.t, err, "peer receive %s", a.Kind())
	}
}

// passTurn は現在のプレイヤーが1を出して手番を終えます（全コマが Home の間は動けません）。
func (n *testNet) passTurn() {
	n.t.Helper()
	cur := n.current()
	if n.cut[cur] {
		n.host(turn.AdvanceTurn{Timeout: true})
		return
	}
	n.play(cur, turn.RollDice{Value: 1})
	n.play(cur, turn.AdvanceTurn{})
}

func isBenign(err error) bool {
	return err == nil || errors.Is(err, ErrDuplicate)
}

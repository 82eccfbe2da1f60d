package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	game "boardrush/game/domain"
	"boardrush/profile"
)

type progress struct {
	PlayerID    string   `json:"playerId"`
	XP          int      `json:"xp"`
	Level       int      `json:"level"`
	Tokens      int      `json:"tokens"`
	GamesPlayed int      `json:"gamesPlayed"`
	Wins        int      `json:"wins"`
	Unlocked    []string `json:"unlocked"`
}

func TestProfileHandler_Progress(t *testing.T) {
	s := newTestServer(t)
	host := s.create("Ada")
	other := s.create("Grace")

	hostID, err := game.ParsePlayerID(host.PlayerID)
	require.NoError(t, err)
	require.NoError(t, s.store.ApplyRewards(context.Background(), hostID, profile.Delta{
		XP: 150, Tokens: 3, Played: true, Win: true, Unlock: []string{profile.UnlockChampion},
	}))

	res := s.do(http.MethodGet, "/players/"+host.PlayerID+"/progress", host.Token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	got := decode[progress](t, res)
	assert.Equal(t, progress{
		PlayerID:    host.PlayerID,
		XP:          150,
		Level:       2,
		Tokens:      3,
		GamesPlayed: 1,
		Wins:        1,
		Unlocked:    []string{profile.UnlockChampion},
	}, got)

	// 記録がなくても初期値を返す
	res = s.do(http.MethodGet, "/players/"+other.PlayerID+"/progress", other.Token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	fresh := decode[progress](t, res)
	assert.Equal(t, 1, fresh.Level)
	assert.Empty(t, fresh.Unlocked)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"no token", "/players/" + host.PlayerID + "/progress", "", http.StatusUnauthorized},
		{"bad token", "/players/" + host.PlayerID + "/progress", "nope", http.StatusUnauthorized},
		{"someone else", "/players/" + host.PlayerID + "/progress", other.Token, http.StatusForbidden},
		{"bad id", "/players/not-an-id/progress", host.Token, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.do(http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, res.StatusCode)
		})
	}
}

package content_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardrush/game/content"
	"boardrush/game/domain"
)

func TestDefault_LoadsEveryCategory(t *testing.T) {
	table, err := content.Default()
	require.NoError(t, err)

	for category := domain.EventQuiz; category < domain.NumEventTypes; category++ {
		assert.NotEmpty(t, table.Pool(category), "category %s", category)
	}
	assert.GreaterOrEqual(t, len(table.Pool(domain.EventDuel)), 3, "a duel needs three questions")

	item, ok := table.Lookup(domain.EventQuiz, 0)
	require.True(t, ok)
	assert.Equal(t, "quiz-mvp", item.ID)
	assert.Equal(t, 1, item.Answer, "answers are converted to 0-based")
	assert.Equal(t, 5, item.Reward)

	duel, ok := table.Lookup(domain.EventDuel, 0)
	require.True(t, ok)
	assert.Equal(t, 10, duel.Points)
	assert.Zero(t, duel.Reward)
}

func TestLoadLua_Filters(t *testing.T) {
	table, err := content.LoadLua(`
		return {
			funding = {
				{ id = "f1", difficulty = 1, prompt = "a", reward = 1 },
				{ id = "f2", difficulty = 2, prompt = "b", reward = 2 },
				{ id = "f3", difficulty = 2, prompt = "c", reward = 3 },
			},
		}`)
	require.NoError(t, err)

	assert.Len(t, table.Items(domain.EventFunding, 2), 2)
	assert.Len(t, table.Items(domain.EventFunding, 0), 3)
	assert.Empty(t, table.Items(domain.EventQuiz, 0))

	_, ok := table.Lookup(domain.EventFunding, 3)
	assert.False(t, ok)
}

func TestLoadLua_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   error
	}{
		{"syntax error", `return {`, content.ErrInvalidPack},
		{"not a table", `return 42`, content.ErrInvalidPack},
		{"entry not a table", `return { quiz = { 1 } }`, content.ErrInvalidPack},
		{"answer out of range", `return { quiz = { { id = "q", options = {"a", "b"}, answer = 3 } } }`, content.ErrInvalidItem},
		{"duplicate id", `return { funding = { { id = "x" } }, challenge = { { id = "x" } } }`, content.ErrInvalidItem},
		{"no os library", `os.exit(1) return {}`, content.ErrInvalidPack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := content.LoadLua(tt.source)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadLuaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.lua")
	require.NoError(t, os.WriteFile(path, []byte(`return { challenge = { { id = "c", difficulty = 3, cost = 4 } } }`), 0o600))

	table, err := content.LoadLuaFile(path)
	require.NoError(t, err)
	item, ok := table.Lookup(domain.EventChallenge, 0)
	require.True(t, ok)
	assert.Equal(t, 3, item.Difficulty)
	assert.Equal(t, 4, item.Cost)

	_, err = content.LoadLuaFile(filepath.Join(t.TempDir(), "missing.lua"))
	assert.Error(t, err)
}

package telemetry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestSetup_TextHandlerWithoutEndpoint(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	shutdown, err := Setup(context.Background(), Config{ServiceName: "test", Level: "warn"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
}

func TestLeveled_Filters(t *testing.T) {
	h := &leveled{Handler: slog.DiscardHandler, level: slog.LevelInfo}
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, h.WithGroup("g").Enabled(context.Background(), slog.LevelWarn), "discard handler is never enabled")
	_, ok := h.WithAttrs(nil).(*leveled)
	assert.True(t, ok)
}

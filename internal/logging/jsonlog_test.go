package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsReachLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Debug("hidden", nil)
	Info("harvest_done", map[string]any{"activity_id": int64(7), "events": 3})
	Error("harvest_failed", map[string]any{"error": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "harvest_done", entries[0].Message)
	assert.Equal(t, int64(7), entries[0].ContextMap()["activity_id"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestInitAcceptsUnknownLevel(t *testing.T) {
	require.NoError(t, Init("chatty", false))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })
	Info("still_works", nil)
}

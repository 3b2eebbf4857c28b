package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/config"
	tlog "tally/internal/log"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := setupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, "worker", &buf)

	logger.Info("dropped")
	slog.Warn("kept")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "worker", rec["component"])
}

func TestRunCleanup(t *testing.T) {
	logger := tlog.New(tlog.Config{Output: &bytes.Buffer{}})

	ran := false
	runCleanup(logger, time.Second, func(context.Context) { ran = true })
	assert.True(t, ran)

	start := time.Now()
	runCleanup(logger, 20*time.Millisecond, func(ctx context.Context) { <-ctx.Done(); time.Sleep(time.Second) })
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	runCleanup(logger, time.Second, nil)
}

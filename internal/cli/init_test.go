package cli

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/config"
	"expenses/internal/log"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, err := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, log.ComponentEvents, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	slog.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"component":"events"`)
}

func TestSetupLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := SetupLogger(&config.Config{LogLevel: "loud"}, log.ComponentApp, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestLoadConfigValidates(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "DATABASE_URL is required")
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(log.New(log.Config{Output: &bytes.Buffer{}}))
	cancel()
	<-ctx.Done()
	assert.Error(t, ctx.Err())
}

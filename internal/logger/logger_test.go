package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/buildmart/internal/config"
)

func TestZapConfigLevels(t *testing.T) {
	cfg := zapConfig(config.Observability{LogLevel: "debug", LogEncoding: "json"})
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, "ts", cfg.EncoderConfig.TimeKey)

	fallback := zapConfig(config.Observability{LogLevel: "loud"})
	assert.Equal(t, zapcore.InfoLevel, fallback.Level.Level())
}

func TestZapConfigConsole(t *testing.T) {
	cfg := zapConfig(config.Observability{LogLevel: "warn", LogEncoding: "console"})
	assert.Equal(t, "console", cfg.Encoding)
	assert.True(t, cfg.Development)
	assert.Equal(t, zapcore.WarnLevel, cfg.Level.Level())
}

func TestBuild(t *testing.T) {
	logger, err := Build(config.Observability{ServiceName: "buildmart", Environment: "test", LogLevel: "error", LogEncoding: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestFxLogger(t *testing.T) {
	assert.NotNil(t, FxLogger(zap.NewNop()))
}

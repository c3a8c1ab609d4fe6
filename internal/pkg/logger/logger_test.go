package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_Development(t *testing.T) {
	logger := NewLogger("development")
	require.NotNil(t, logger)

	logger.Info("test message")
}

func TestNewLogger_Production(t *testing.T) {
	logger := NewLogger("production")
	require.NotNil(t, logger)

	logger.Info("test message")
}

func TestNewLogger_WithLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	logger := NewLogger("development")
	require.NotNil(t, logger)
}

func TestNewLogger_WithInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "invalid_level")

	// 無効なレベルでもデフォルトで動作することを確認
	logger := NewLogger("development")
	require.NotNil(t, logger)
}

func TestSetAndGet(t *testing.T) {
	originalLogger := Get()
	defer Set(originalLogger)

	newLogger := zap.NewNop()
	Set(newLogger)

	assert.Equal(t, newLogger, Get())
}

func TestPackageLevelFunctions(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("info", zap.String("booking_id", "bk-1"))
		Debug("debug")
		Warn("warn")
		Error("error", zap.Int("status", 500))
		_ = Sync()
	})
}

func TestWith(t *testing.T) {
	logger := With(zap.String("component", "reaper"))
	require.NotNil(t, logger)
}

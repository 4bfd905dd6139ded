package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	cfg, err := Config("debug", "console")
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Encoding)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
	assert.False(t, cfg.DisableStacktrace)

	cfg, err = Config("WARN", "json")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, zapcore.WarnLevel, cfg.Level.Level())
	assert.True(t, cfg.DisableStacktrace)
	assert.Nil(t, cfg.EncoderConfig.EncodeCaller)
}

func TestConfig_Errors(t *testing.T) {
	t.Parallel()

	_, err := Config("loud", "console")
	assert.Error(t, err)
	_, err = Config("info", "xml")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	t.Parallel()

	logger, err := New("info", "json")
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

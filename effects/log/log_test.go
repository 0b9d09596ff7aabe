package log_test

import (
	"testing"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmit_MapsLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	log.Emit(logger, log.LogDebug, "d", map[string]interface{}{"path": "a.b"})
	log.Emit(logger, log.LogWarn, "w", nil)
	log.Emit(logger, log.LogError, "e", nil)
	log.Emit(logger, "bogus", "fallback", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "a.b", entries[0].ContextMap()["path"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[3].Level)
}

func TestEmit_NilLoggerIsInert(t *testing.T) {
	assert.NotPanics(t, func() {
		log.Emit(nil, log.LogInfo, "nothing", nil)
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := log.ParseLevel(log.LogWarn)
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	lvl, err = log.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	_, err = log.ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	logger, err := log.New(log.LogDebug, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = log.New("loud", false)
	assert.Error(t, err)
}

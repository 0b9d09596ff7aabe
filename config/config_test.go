package config_test

import (
	"strings"
	"testing"

	"github.com/on-the-ground/effect_ive_feedbacks/config"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_OverridesDefaults(t *testing.T) {
	cfg, err := config.LoadFile("testdata/engine.yaml")
	require.NoError(t, err)

	assert.Equal(t, log.LogDebug, cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, int64(1000), cfg.Cache.NumCounters)
	assert.Equal(t, int64(4096), cfg.Cache.MaxCost)
	assert.Equal(t, config.Default().Cache.BufferItems, cfg.Cache.BufferItems)
	assert.Equal(t, 8, cfg.Commits.BufferSize)
}

func TestLoad_EmptyInputIsDefault(t *testing.T) {
	cfg, err := config.Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := config.Load(strings.NewReader("log:\n  colour: red\n"))
	assert.Error(t, err)
}

func TestLoad_ReportsDottedKey(t *testing.T) {
	cases := map[string]string{
		"log:\n  level: loud\n":         config.KeyLogLevel,
		"cache:\n  num_counters: 0\n":   config.KeyCacheNumCounters,
		"cache:\n  max_cost: -1\n":      config.KeyCacheMaxCost,
		"cache:\n  buffer_items: 0\n":   config.KeyCacheBufferItems,
		"commits:\n  buffer_size: -2\n": config.KeyCommitsBufferSize,
	}
	for doc, key := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := config.Load(strings.NewReader(doc))
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := config.LoadFile("testdata/missing.yaml")
	assert.Error(t, err)
}

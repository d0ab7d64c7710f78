package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbt/internal/adapters/logger"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, "daily", cfg.Period)
	assert.Equal(t, 1_000_000.0, cfg.InitialCash)
	assert.Equal(t, 1.0, cfg.ContractMultiplier)
	assert.Equal(t, 10*time.Minute, cfg.FeedCacheTTL)
	assert.Equal(t, 10, cfg.OptimizeMaxTrials)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9000")
	t.Setenv("SYMBOL", "ETHUSDT")
	t.Setenv("INITIAL_CASH", "50000")
	t.Setenv("COMMISSION_RATE", "0.0005")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ServerAddr)
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, 50000.0, cfg.InitialCash)
	assert.Equal(t, 0.0005, cfg.CommissionRate)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative initial cash", "INITIAL_CASH", "-1"},
		{"commission out of range", "COMMISSION_RATE", "1.5"},
		{"bad commission value", "COMMISSION_RATE", "abc"},
		{"margin out of range", "MARGIN_RATE", "2"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"zero trials", "OPTIMIZE_MAX_TRIALS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

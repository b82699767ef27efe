package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
jwt:
  secret: test
engine:
  retry_decay: 0.4
  accuracy_curve:
    - min_accuracy: 0.5
      multiplier: 0.6
`)
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "analytics.events", cfg.RabbitMQ.Exchange)
	assert.Equal(t, 120, cfg.RateLimit.HeartbeatPerMinute)

	assert.Equal(t, 0.4, cfg.Engine.RetryDecay)
	assert.Equal(t, 1.25, cfg.Engine.FirstAttemptBonus)
	assert.Equal(t, 3.0, cfg.Engine.MinSecondsPerQuestion)
	assert.Equal(t, []CurveStep{{MinAccuracy: 0.5, Multiplier: 0.6}}, cfg.Engine.AccuracyCurve)
	assert.Equal(t, int64(2000), cfg.Engine.LockWait().Milliseconds())
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero retry decay", "engine:\n  retry_decay: 0\n"},
		{"bonus below one", "engine:\n  first_attempt_bonus: 0.9\n"},
		{"short secret in release", "server:\n  mode: release\njwt:\n  secret: short\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestEngineConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultEngineConfig().Validate())

	cfg := DefaultEngineConfig()
	cfg.AccuracyCurve = []CurveStep{{MinAccuracy: 1.5, Multiplier: 1}}
	assert.Error(t, cfg.Validate())

	cfg = DefaultEngineConfig()
	cfg.RushPenaltyFactor = 2
	assert.Error(t, cfg.Validate())
}

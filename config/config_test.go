package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/marketgame/models"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "room", cfg.Database.Redis.KeyPrefix)
	assert.Equal(t, "marketgame", cfg.NATS.SubjectPrefix)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, 10, cfg.Game.MaxUpdateAttempts)
	assert.Equal(t, 2*time.Millisecond, cfg.Game.RetryBaseDelay)
	assert.Equal(t, time.Second, cfg.Game.TickInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, models.DefaultSettings(), cfg.GameSettings())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  http_address: ":7000"
database:
  driver: redis
  redis:
    addr: "cache:6379"
    db: 2
game:
  starting_cash: 250
  round_seconds: 60
  retry_base_delay: 5ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("MARKETGAME_GAME_TURN_SECONDS", "15")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.HTTPAddress)
	assert.Equal(t, "redis", cfg.Database.Driver)
	assert.Equal(t, "cache:6379", cfg.Database.Redis.Addr)
	assert.Equal(t, 2, cfg.Database.Redis.DB)
	assert.Equal(t, 5*time.Millisecond, cfg.Game.RetryBaseDelay)
	assert.Equal(t, "debug", cfg.Log.Level)

	s := cfg.GameSettings()
	assert.Equal(t, 250, s.StartingCash)
	assert.Equal(t, 60, s.RoundSeconds)
	assert.Equal(t, 15, s.TurnSeconds)
	assert.Equal(t, 5, s.InitialInterestRate)
}

func TestLoadConfig_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1.10, cfg.Staking.RewardMultiplier)
	assert.Equal(t, 30*time.Second, cfg.Staking.Timeout())
	assert.Equal(t, 100, cfg.Staking.ProofLimit)
	assert.Equal(t, 4, cfg.Scheduler.SweepWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.RetryBackoff())
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration())
	assert.False(t, cfg.Scheduler.Disabled)
	assert.Equal(t, "postgres://postgres:@localhost:5432/studystake?sslmode=disable", cfg.Database.DatabaseURL())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = 9090

[staking]
reward_multiplier = 1.25

[scheduler]
sweep_spec = "@every 30m"
sweep_workers = 8
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 1.25, cfg.Staking.RewardMultiplier)
	assert.Equal(t, "@every 30m", cfg.Scheduler.SweepSpec)
	assert.Equal(t, 8, cfg.Scheduler.SweepWorkers)
	// untouched sections still get defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ATTESTATION_PRIVATE_KEY=abc123\nJWT_SECRET=from-file\n"), 0644))

	for _, key := range []string{"ATTESTATION_PRIVATE_KEY", "JWT_SECRET"} {
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() { os.Unsetenv(key) })
	}
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("WEB3_CHAIN_ID", "8453")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadEnv(envFile, filepath.Join(t.TempDir(), "absent.env")))

	assert.Equal(t, "abc123", cfg.Web3.PrivateKey)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.Database.DatabaseURL())
	assert.Equal(t, int64(8453), cfg.Web3.ChainID)
}

func TestLoadEnvRejectsBadChainID(t *testing.T) {
	t.Setenv("WEB3_CHAIN_ID", "base")
	assert.Error(t, DefaultConfig().LoadEnv())
}

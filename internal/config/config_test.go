package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "openai", cfg.Reasoner.Provider)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 25, cfg.Engine.MaxSteps)
	assert.True(t, cfg.Engine.CheckpointEveryStep)
	assert.True(t, cfg.Policy.Enabled)
	assert.Equal(t, 2, cfg.Tools.Search.MaxResults)
	assert.Equal(t, 10*time.Minute, cfg.Session.LeaseTTL)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switchboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reasoner:
  provider: anthropic
  model: claude-sonnet-4-5
  retry:
    max_tries: 5
    initial_interval: 1s
store:
  backend: sqlite
  path: threads.db
  redact: ["\\d{3}-\\d{2}-\\d{4}"]
engine:
  domain: quality control
  max_steps: 12
  checkpoint_every_step: false
`), 0o644))

	cfg := New()
	require.NoError(t, LoadFile(path, cfg))

	assert.Equal(t, "anthropic", cfg.Reasoner.Provider)
	assert.Equal(t, uint(5), cfg.Reasoner.Retry.MaxTries)
	assert.Equal(t, time.Second, cfg.Reasoner.Retry.InitialInterval)
	assert.Equal(t, 5*time.Second, cfg.Reasoner.Retry.MaxInterval, "unset keys keep defaults")
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, []string{`\d{3}-\d{2}-\d{4}`}, cfg.Store.Redact)
	assert.Equal(t, "quality control", cfg.Engine.Domain)
	assert.Equal(t, 12, cfg.Engine.MaxSteps)
	assert.False(t, cfg.Engine.CheckpointEveryStep)
}

func TestLoadFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switchboard.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[reasoner]
provider = "scripted"

[store]
backend = "redis"

[store.redis]
addr = "redis:6379"
ttl = "24h"

[session]
distributed = true
lease_ttl = "2m"
`), 0o644))

	cfg := New()
	require.NoError(t, LoadFile(path, cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "scripted", cfg.Reasoner.Provider)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Store.Redis.TTL)
	assert.True(t, cfg.Session.Distributed)
	assert.Equal(t, 2*time.Minute, cfg.Session.LeaseTTL)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, LoadFile(filepath.Join(dir, "missing.yaml"), New()))

	ini := filepath.Join(dir, "switchboard.ini")
	require.NoError(t, os.WriteFile(ini, []byte("x=1"), 0o644))
	assert.ErrorContains(t, LoadFile(ini, New()), "unsupported")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("engine: [1, 2"), 0o644))
	assert.Error(t, LoadFile(bad, New()))
}

func TestApplyEnv(t *testing.T) {
	cfg := New()
	err := ApplyEnv(cfg, []string{
		"SWITCHBOARD_ENGINE_MAX_STEPS=9",
		"SWITCHBOARD_ENGINE_CHECKPOINT_EVERY_STEP=false",
		"SWITCHBOARD_STORE_REDIS_ADDR=cache:6380",
		"SWITCHBOARD_STORE_REDACT=a+,b+",
		"SWITCHBOARD_SESSION_LEASE_TTL=90s",
		"SWITCHBOARD_REASONER_RETRY_MAX_TRIES=7",
		"SWITCHBOARD_UNKNOWN_KEY=ignored",
		"HOME=/root",
	})
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Engine.MaxSteps)
	assert.False(t, cfg.Engine.CheckpointEveryStep)
	assert.Equal(t, "cache:6380", cfg.Store.Redis.Addr)
	assert.Equal(t, []string{"a+", "b+"}, cfg.Store.Redact)
	assert.Equal(t, 90*time.Second, cfg.Session.LeaseTTL)
	assert.Equal(t, uint(7), cfg.Reasoner.Retry.MaxTries)
	assert.Equal(t, "openai", cfg.Reasoner.Provider, "untouched keys keep their value")
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	err := ApplyEnv(New(), []string{"SWITCHBOARD_ENGINE_MAX_STEPS=many"})
	assert.ErrorContains(t, err, "invalid environment override")
}

func TestValidate(t *testing.T) {
	cfg := New()
	cfg.Reasoner.Provider = "oracle"
	cfg.Store.Backend = "tape"
	cfg.Engine.MaxSteps = 0
	cfg.Session.Distributed = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reasoner.provider")
	assert.Contains(t, err.Error(), "store.backend")
	assert.Contains(t, err.Error(), "engine.max_steps")
	assert.Contains(t, err.Error(), "session.distributed")
}

func TestAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-default")
	t.Setenv("MY_KEY", "sk-custom")

	cfg := New()
	assert.Equal(t, "sk-default", cfg.APIKey())

	cfg.Reasoner.APIKeyEnv = "MY_KEY"
	assert.Equal(t, "sk-custom", cfg.APIKey())

	cfg.Reasoner.Provider = "scripted"
	cfg.Reasoner.APIKeyEnv = ""
	assert.Empty(t, cfg.APIKey())
}

// Package config loads switchboard configuration from YAML or TOML files
// with SWITCHBOARD_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SWITCHBOARD_"

// DefaultFiles are probed in order when no config path is given.
var DefaultFiles = []string{"switchboard.yaml", "switchboard.yml", "switchboard.toml"}

// Config is the full application configuration.
type Config struct {
	Reasoner  ReasonerConfig  `yaml:"reasoner" toml:"reasoner" mapstructure:"reasoner"`
	Store     StoreConfig     `yaml:"store" toml:"store" mapstructure:"store"`
	Session   SessionConfig   `yaml:"session" toml:"session" mapstructure:"session"`
	Engine    EngineConfig    `yaml:"engine" toml:"engine" mapstructure:"engine"`
	Tools     ToolsConfig     `yaml:"tools" toml:"tools" mapstructure:"tools"`
	Policy    PolicyConfig    `yaml:"policy" toml:"policy" mapstructure:"policy"`
	HTTP      HTTPConfig      `yaml:"http" toml:"http" mapstructure:"http"`
	NATS      NATSConfig      `yaml:"nats" toml:"nats" mapstructure:"nats"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry" mapstructure:"telemetry"`
	Log       LogConfig       `yaml:"log" toml:"log" mapstructure:"log"`
}

// ReasonerConfig selects and tunes the reasoning backend.
type ReasonerConfig struct {
	// Provider is openai, anthropic or scripted.
	Provider    string  `yaml:"provider" toml:"provider" mapstructure:"provider"`
	Model       string  `yaml:"model" toml:"model" mapstructure:"model"`
	BaseURL     string  `yaml:"base_url" toml:"base_url" mapstructure:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env" toml:"api_key_env" mapstructure:"api_key_env"`
	Temperature float64 `yaml:"temperature" toml:"temperature" mapstructure:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens" toml:"max_tokens" mapstructure:"max_tokens"`
	// Script is a YAML replay file for the scripted provider.
	Script string `yaml:"script" toml:"script" mapstructure:"script"`

	Retry RetryConfig `yaml:"retry" toml:"retry" mapstructure:"retry"`
}

// RetryConfig bounds retries of unavailable collaborators.
type RetryConfig struct {
	MaxTries        uint          `yaml:"max_tries" toml:"max_tries" mapstructure:"max_tries"`
	InitialInterval time.Duration `yaml:"initial_interval" toml:"initial_interval" mapstructure:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" toml:"max_interval" mapstructure:"max_interval"`
	MaxElapsed      time.Duration `yaml:"max_elapsed" toml:"max_elapsed" mapstructure:"max_elapsed"`
}

// StoreConfig selects the checkpoint store.
type StoreConfig struct {
	// Backend is memory, file, sqlite or redis.
	Backend string `yaml:"backend" toml:"backend" mapstructure:"backend"`
	// Path is the directory of the file store or the SQLite DSN.
	Path  string      `yaml:"path" toml:"path" mapstructure:"path"`
	Redis RedisConfig `yaml:"redis" toml:"redis" mapstructure:"redis"`
	// EncryptionKeyEnv names a variable holding a hex encoded 32 byte key.
	EncryptionKeyEnv string `yaml:"encryption_key_env" toml:"encryption_key_env" mapstructure:"encryption_key_env"`
	// FallbackKeyEnvs name variables holding retired keys still accepted on load.
	FallbackKeyEnvs []string `yaml:"fallback_key_envs" toml:"fallback_key_envs" mapstructure:"fallback_key_envs"`
	// Redact lists regular expressions masked before saving.
	Redact []string `yaml:"redact" toml:"redact" mapstructure:"redact"`
}

// RedisConfig configures the Redis store and locker.
type RedisConfig struct {
	Addr        string        `yaml:"addr" toml:"addr" mapstructure:"addr"`
	PasswordEnv string        `yaml:"password_env" toml:"password_env" mapstructure:"password_env"`
	DB          int           `yaml:"db" toml:"db" mapstructure:"db"`
	Prefix      string        `yaml:"prefix" toml:"prefix" mapstructure:"prefix"`
	TTL         time.Duration `yaml:"ttl" toml:"ttl" mapstructure:"ttl"`
	LockPrefix  string        `yaml:"lock_prefix" toml:"lock_prefix" mapstructure:"lock_prefix"`
}

// SessionConfig tunes thread identity and leasing.
type SessionConfig struct {
	// Namespace is the UUID thread ids are derived in. Empty selects the built-in one.
	Namespace string        `yaml:"namespace" toml:"namespace" mapstructure:"namespace"`
	LockTTL   time.Duration `yaml:"lock_ttl" toml:"lock_ttl" mapstructure:"lock_ttl"`
	LeaseTTL  time.Duration `yaml:"lease_ttl" toml:"lease_ttl" mapstructure:"lease_ttl"`
	// Distributed enables the Redis locker when the redis backend is used.
	Distributed bool `yaml:"distributed" toml:"distributed" mapstructure:"distributed"`
}

// EngineConfig tunes runs.
type EngineConfig struct {
	// Domain is the subject the request grader accepts.
	Domain              string `yaml:"domain" toml:"domain" mapstructure:"domain"`
	MaxSteps            int    `yaml:"max_steps" toml:"max_steps" mapstructure:"max_steps"`
	CheckpointEveryStep bool   `yaml:"checkpoint_every_step" toml:"checkpoint_every_step" mapstructure:"checkpoint_every_step"`
	ResumeNode          string `yaml:"resume_node" toml:"resume_node" mapstructure:"resume_node"`
	MaxRequestSize      int    `yaml:"max_request_size" toml:"max_request_size" mapstructure:"max_request_size"`
}

// ToolsConfig configures the researcher and coder tools.
type ToolsConfig struct {
	Search SearchConfig `yaml:"search" toml:"search" mapstructure:"search"`
	Exec   ExecConfig   `yaml:"exec" toml:"exec" mapstructure:"exec"`
}

// SearchConfig configures web search.
type SearchConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	APIKeyEnv  string `yaml:"api_key_env" toml:"api_key_env" mapstructure:"api_key_env"`
	Endpoint   string `yaml:"endpoint" toml:"endpoint" mapstructure:"endpoint"`
	MaxResults int    `yaml:"max_results" toml:"max_results" mapstructure:"max_results"`
}

// ExecConfig configures code execution.
type ExecConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Interpreter string `yaml:"interpreter" toml:"interpreter" mapstructure:"interpreter"`
	// Registry is a tools.yaml listing interpreters. Missing means the built-in ones.
	Registry  string        `yaml:"registry" toml:"registry" mapstructure:"registry"`
	BaseDir   string        `yaml:"base_dir" toml:"base_dir" mapstructure:"base_dir"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout" mapstructure:"timeout"`
	MaxOutput int           `yaml:"max_output" toml:"max_output" mapstructure:"max_output"`
}

// PolicyConfig gates code execution.
type PolicyConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	// File is a rego module. Empty selects the built-in policy.
	File string `yaml:"file" toml:"file" mapstructure:"file"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr" toml:"addr" mapstructure:"addr"`
}

// NATSConfig configures the event publisher.
type NATSConfig struct {
	URL           string `yaml:"url" toml:"url" mapstructure:"url"`
	SubjectPrefix string `yaml:"subject_prefix" toml:"subject_prefix" mapstructure:"subject_prefix"`
}

// TelemetryConfig toggles metrics and tracing.
type TelemetryConfig struct {
	Metrics bool `yaml:"metrics" toml:"metrics" mapstructure:"metrics"`
	Tracing bool `yaml:"tracing" toml:"tracing" mapstructure:"tracing"`
	Audit   bool `yaml:"audit" toml:"audit" mapstructure:"audit"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level" toml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" toml:"json" mapstructure:"json"`
}

// New returns the defaults.
func New() *Config {
	return &Config{
		Reasoner: ReasonerConfig{
			Provider: "openai",
			Retry: RetryConfig{
				MaxTries:        3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				MaxElapsed:      30 * time.Second,
			},
		},
		Store: StoreConfig{
			Backend: "file",
			Redis: RedisConfig{
				Addr:       "localhost:6379",
				LockPrefix: "switchboard:lock:",
			},
		},
		Session: SessionConfig{
			LockTTL:  30 * time.Second,
			LeaseTTL: 10 * time.Minute,
		},
		Engine: EngineConfig{
			MaxSteps:            25,
			CheckpointEveryStep: true,
		},
		Tools: ToolsConfig{
			Search: SearchConfig{MaxResults: 2},
			Exec:   ExecConfig{Interpreter: "python", Timeout: 30 * time.Second},
		},
		Policy: PolicyConfig{Enabled: true},
		HTTP:   HTTPConfig{Addr: ":8080"},
		NATS:   NATSConfig{SubjectPrefix: "switchboard.events"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path (or the first existing DefaultFiles entry when path is empty)
// over the defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := New()
	if path == "" {
		path = findDefault()
	}
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg, os.Environ()); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func findDefault() string {
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// LoadFile decodes path into cfg, picking the format from the extension.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

// ApplyEnv overlays SWITCHBOARD_<SECTION>_<KEY> variables from environ onto cfg.
// Keys follow the file keys, e.g. SWITCHBOARD_ENGINE_MAX_STEPS or
// SWITCHBOARD_STORE_REDIS_ADDR. Lists are comma separated.
func ApplyEnv(cfg *Config, environ []string) error {
	paths := fieldPaths(reflect.TypeOf(*cfg), nil)
	overlay := map[string]any{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		path, known := paths[strings.TrimPrefix(key, EnvPrefix)]
		if !known {
			continue
		}
		setPath(overlay, path, value)
	}
	if len(overlay) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(overlay); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

// fieldPaths maps upper-cased env suffixes to mapstructure key paths.
func fieldPaths(t reflect.Type, prefix []string) map[string][]string {
	out := map[string][]string{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		path := append(append([]string(nil), prefix...), tag)
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			for k, v := range fieldPaths(f.Type, path) {
				out[k] = v
			}
			continue
		}
		out[strings.ToUpper(strings.Join(path, "_"))] = path
	}
	return out
}

func setPath(m map[string]any, path []string, value string) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch c.Reasoner.Provider {
	case "openai", "anthropic", "scripted":
	default:
		errs = append(errs, fmt.Errorf("reasoner.provider: unknown provider %q", c.Reasoner.Provider))
	}
	switch c.Store.Backend {
	case "memory", "file", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Engine.MaxSteps < 1 {
		errs = append(errs, errors.New("engine.max_steps: must be at least 1"))
	}
	if c.Session.Distributed && c.Store.Backend != "redis" {
		errs = append(errs, errors.New("session.distributed: requires the redis store backend"))
	}
	return errors.Join(errs...)
}

// APIKey returns the reasoner key from the configured variable, or the provider's usual one.
func (c *Config) APIKey() string {
	env := c.Reasoner.APIKeyEnv
	if env == "" {
		env = DefaultAPIKeyEnv(c.Reasoner.Provider)
	}
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// DefaultAPIKeyEnv returns the conventional key variable of a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "tavily":
		return "TAVILY_API_KEY"
	default:
		return ""
	}
}

// SearchAPIKey returns the web search key.
func (c *Config) SearchAPIKey() string {
	env := c.Tools.Search.APIKeyEnv
	if env == "" {
		env = DefaultAPIKeyEnv("tavily")
	}
	return os.Getenv(env)
}

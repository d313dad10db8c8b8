package cli

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"

	anthropicSDK "github.com/anthropics/anthropic-sdk-go"
	anthropicOption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/internal/config"
	anthropicAdapter "github.com/aretw0/switchboard/pkg/adapters/anthropic"
	"github.com/aretw0/switchboard/pkg/adapters/file"
	"github.com/aretw0/switchboard/pkg/adapters/memory"
	natsAdapter "github.com/aretw0/switchboard/pkg/adapters/nats"
	openaiAdapter "github.com/aretw0/switchboard/pkg/adapters/openai"
	"github.com/aretw0/switchboard/pkg/adapters/process"
	redisAdapter "github.com/aretw0/switchboard/pkg/adapters/redis"
	"github.com/aretw0/switchboard/pkg/adapters/scripted"
	"github.com/aretw0/switchboard/pkg/adapters/sqlite"
	"github.com/aretw0/switchboard/pkg/adapters/tavily"
	"github.com/aretw0/switchboard/pkg/nodes"
	"github.com/aretw0/switchboard/pkg/observability"
	"github.com/aretw0/switchboard/pkg/persistence/middleware"
	"github.com/aretw0/switchboard/pkg/policy"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/aretw0/switchboard/pkg/resilience"
	"github.com/google/uuid"
	openaiOption "github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
)

// App is a fully wired engine plus the resources it owns.
type App struct {
	Engine  *switchboard.Engine
	Metrics *observability.Metrics
	Store   ports.CheckpointStore
	Logger  *slog.Logger
	Config  *config.Config

	closers []io.Closer
}

// Close releases stores and connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// createApp builds the engine described by cfg.
func createApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Logger: logger, Config: cfg}

	reasoner, err := createReasoner(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps := nodes.Deps{Reasoner: reasoner}
	if cfg.Engine.Domain != "" {
		p := nodes.DefaultPrompts(cfg.Engine.Domain)
		deps.Prompts = &p
	}
	if deps.Search, err = createSearch(cfg, logger); err != nil {
		return nil, err
	}
	if deps.Exec, err = createExec(ctx, cfg, logger); err != nil {
		return nil, err
	}

	g, err := nodes.Workflow(deps)
	if err != nil {
		return nil, fmt.Errorf("error building workflow: %w", err)
	}

	store, locker, err := createStore(cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	opts := []switchboard.Option{
		switchboard.WithStore(store),
		switchboard.WithLogger(logger),
		switchboard.WithMaxSteps(cfg.Engine.MaxSteps),
		switchboard.WithCheckpointEveryStep(cfg.Engine.CheckpointEveryStep),
		switchboard.WithSessionTTLs(cfg.Session.LockTTL, cfg.Session.LeaseTTL),
		switchboard.WithLifecycleHooks(createDebugHooks(logger)),
	}
	if locker != nil {
		opts = append(opts, switchboard.WithLocker(locker))
	}
	if cfg.Session.Namespace != "" {
		ns, err := uuid.Parse(cfg.Session.Namespace)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("session.namespace: %w", err)
		}
		opts = append(opts, switchboard.WithNamespace(ns))
	}
	if cfg.Engine.ResumeNode != "" {
		opts = append(opts, switchboard.WithResumeNode(cfg.Engine.ResumeNode))
	}
	if cfg.Engine.MaxRequestSize > 0 {
		opts = append(opts, switchboard.WithMaxRequestSize(cfg.Engine.MaxRequestSize))
	}
	if cfg.Telemetry.Metrics {
		app.Metrics = observability.NewMetrics()
		opts = append(opts, switchboard.WithLifecycleHooks(app.Metrics.Hooks()))
	}
	if cfg.Telemetry.Audit {
		opts = append(opts, switchboard.WithLifecycleHooks(observability.AuditHooks(logger)))
	}
	if cfg.Telemetry.Tracing {
		opts = append(opts, switchboard.WithTracer(otel.Tracer("github.com/aretw0/switchboard")))
	}
	if cfg.NATS.URL != "" {
		sink, err := natsAdapter.Connect(cfg.NATS.URL, natsAdapter.WithSubjectPrefix(cfg.NATS.SubjectPrefix))
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, sink)
		opts = append(opts, switchboard.WithEventSink(sink))
	}

	eng, err := switchboard.New(g, opts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = eng
	return app, nil
}

func createReasoner(cfg *config.Config, logger *slog.Logger) (ports.Reasoner, error) {
	rc := cfg.Reasoner
	var r ports.Reasoner
	switch rc.Provider {
	case "openai":
		var reqOpts []openaiOption.RequestOption
		if key := cfg.APIKey(); key != "" {
			reqOpts = append(reqOpts, openaiOption.WithAPIKey(key))
		}
		if rc.BaseURL != "" {
			reqOpts = append(reqOpts, openaiOption.WithBaseURL(rc.BaseURL))
		}
		r = openaiAdapter.New(reqOpts, func(o *openaiAdapter.Options) {
			if rc.Model != "" {
				o.Model = rc.Model
			}
			o.Temperature = rc.Temperature
			if rc.MaxTokens > 0 {
				o.MaxCompletionTokens = rc.MaxTokens
			}
		})
	case "anthropic":
		var reqOpts []anthropicOption.RequestOption
		if rc.BaseURL != "" {
			reqOpts = append(reqOpts, anthropicOption.WithBaseURL(rc.BaseURL))
		}
		r = anthropicAdapter.New(reqOpts, func(o *anthropicAdapter.Options) {
			o.APIKey = cfg.APIKey()
			if rc.Model != "" {
				o.Model = anthropicSDK.Model(rc.Model)
			}
			o.Temperature = rc.Temperature
			if rc.MaxTokens > 0 {
				o.MaxTokens = rc.MaxTokens
			}
		})
	case "scripted":
		if rc.Script == "" {
			return nil, errors.New("reasoner.script is required for the scripted provider")
		}
		s, err := scripted.Load(rc.Script)
		if err != nil {
			return nil, err
		}
		return scripted.Streaming{Reasoner: s}, nil
	default:
		return nil, fmt.Errorf("unknown reasoner provider %q", rc.Provider)
	}
	return resilience.Reasoner(r, retryOptions(cfg, logger)...), nil
}

func retryOptions(cfg *config.Config, logger *slog.Logger) []resilience.Option {
	rc := cfg.Reasoner.Retry
	return []resilience.Option{
		resilience.WithPolicy(resilience.Policy{
			MaxTries:        rc.MaxTries,
			InitialInterval: rc.InitialInterval,
			MaxInterval:     rc.MaxInterval,
			MaxElapsed:      rc.MaxElapsed,
		}),
		resilience.WithLogger(logger),
	}
}

func createSearch(cfg *config.Config, logger *slog.Logger) (ports.Tool, error) {
	sc := cfg.Tools.Search
	if !sc.Enabled {
		return nil, nil
	}
	var opts []tavily.Option
	if sc.Endpoint != "" {
		opts = append(opts, tavily.WithEndpoint(sc.Endpoint))
	}
	if sc.MaxResults > 0 {
		opts = append(opts, tavily.WithMaxResults(sc.MaxResults))
	}
	search, err := tavily.New(cfg.SearchAPIKey(), opts...)
	if err != nil {
		return nil, fmt.Errorf("tools.search: %w", err)
	}
	return resilience.Tool(search, retryOptions(cfg, logger)...), nil
}

func createExec(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.Tool, error) {
	ec := cfg.Tools.Exec
	if !ec.Enabled {
		return nil, nil
	}
	registry := process.DefaultInterpreters()
	if ec.Registry != "" {
		var err error
		if registry, err = process.LoadInterpreters(ec.Registry); err != nil {
			return nil, fmt.Errorf("tools.exec: %w", err)
		}
	}

	var opts []process.Option
	if ec.BaseDir != "" {
		opts = append(opts, process.WithBaseDir(ec.BaseDir))
	}
	if ec.Timeout > 0 {
		opts = append(opts, process.WithTimeout(ec.Timeout))
	}
	if ec.MaxOutput > 0 {
		opts = append(opts, process.WithMaxOutput(ec.MaxOutput))
	}
	exec, err := process.Lookup(registry, ec.Interpreter, opts...)
	if err != nil {
		return nil, fmt.Errorf("tools.exec: %w", err)
	}
	if !cfg.Policy.Enabled {
		logger.Warn("Code execution is not gated by a policy")
		return exec, nil
	}
	pe, err := policy.Load(ctx, cfg.Policy.File)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	return policy.Guard(exec, pe, logger), nil
}

// createStore builds the checkpoint store, its middleware chain and the optional locker.
func createStore(cfg *config.Config, app *App) (ports.CheckpointStore, ports.DistributedLocker, error) {
	sc := cfg.Store
	var (
		store  ports.CheckpointStore
		locker ports.DistributedLocker
	)
	switch sc.Backend {
	case "memory":
		store = memory.NewStore()
	case "file":
		store = file.New(sc.Path)
	case "sqlite":
		dsn := sc.Path
		if dsn == "" {
			dsn = "switchboard.db"
		}
		s, err := sqlite.New(dsn)
		if err != nil {
			return nil, nil, err
		}
		app.closers = append(app.closers, s)
		store = s
	case "redis":
		var opts []redisAdapter.Option
		if sc.Redis.Prefix != "" {
			opts = append(opts, redisAdapter.WithPrefix(sc.Redis.Prefix))
		}
		if sc.Redis.TTL > 0 {
			opts = append(opts, redisAdapter.WithTTL(sc.Redis.TTL))
		}
		password := ""
		if sc.Redis.PasswordEnv != "" {
			password = os.Getenv(sc.Redis.PasswordEnv)
		}
		s := redisAdapter.New(sc.Redis.Addr, password, sc.Redis.DB, opts...)
		app.closers = append(app.closers, s)
		store = s
		if cfg.Session.Distributed {
			locker = redisAdapter.NewLocker(s.Client(), sc.Redis.LockPrefix)
		}
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}

	var mws []middleware.Middleware
	if len(sc.Redact) > 0 {
		for _, p := range sc.Redact {
			if _, err := regexp.Compile(p); err != nil {
				return nil, nil, fmt.Errorf("store.redact: %w", err)
			}
		}
		mws = append(mws, middleware.NewRedactMiddleware(sc.Redact))
	}
	if sc.EncryptionKeyEnv != "" {
		enc, err := encryptionConfig(sc)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return middleware.Chain(store, mws...), locker, nil
}

func encryptionConfig(sc config.StoreConfig) (middleware.EncryptionConfig, error) {
	key, err := decodeKey(sc.EncryptionKeyEnv)
	if err != nil {
		return middleware.EncryptionConfig{}, err
	}
	cfg := middleware.EncryptionConfig{ActiveKey: key}
	for _, env := range sc.FallbackKeyEnvs {
		k, err := decodeKey(env)
		if err != nil {
			return middleware.EncryptionConfig{}, err
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, k)
	}
	return cfg, nil
}

func decodeKey(env string) ([]byte, error) {
	raw := os.Getenv(env)
	if raw == "" {
		return nil, fmt.Errorf("store: %s is not set", env)
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("store: %s is not hex: %w", env, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("store: %s must decode to 32 bytes, got %d", env, len(key))
	}
	return key, nil
}

package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/cenkalti/backoff/v5"
)

// Policy bounds the retry loop.
type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultPolicy returns three attempts starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsed:      30 * time.Second,
	}
}

type config struct {
	policy Policy
	logger *slog.Logger
}

// Option configures a retry wrapper.
type Option func(*config)

// WithPolicy overrides the default retry policy.
func WithPolicy(p Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithLogger logs each retry at Warn level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) config {
	c := config{policy: DefaultPolicy(), logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the policy is exhausted.
func Do[T any](ctx context.Context, op string, fn func() (T, error), opts ...Option) (T, error) {
	return do(ctx, newConfig(opts), op, fn)
}

func do[T any](ctx context.Context, c config, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if c.policy.InitialInterval > 0 {
		b.InitialInterval = c.policy.InitialInterval
	}
	if c.policy.MaxInterval > 0 {
		b.MaxInterval = c.policy.MaxInterval
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("Collaborator unavailable, retrying", "op", op, "wait", wait, "err", err)
		}),
	}
	if c.policy.MaxTries > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(c.policy.MaxTries))
	}
	if c.policy.MaxElapsed > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(c.policy.MaxElapsed))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !domain.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, retryOpts...)
}

type reasoner struct {
	next ports.Reasoner
	cfg  config
}

// Reasoner wraps r with retries. A streaming reasoner stays streaming.
func Reasoner(r ports.Reasoner, opts ...Option) ports.Reasoner {
	base := reasoner{next: r, cfg: newConfig(opts)}
	if s, ok := r.(ports.StreamingReasoner); ok {
		return &streamingReasoner{reasoner: base, stream: s}
	}
	return &base
}

func (r *reasoner) Decide(ctx context.Context, req ports.DecisionRequest) (ports.Decision, error) {
	return do(ctx, r.cfg, "decide:"+req.Node, func() (ports.Decision, error) {
		return r.next.Decide(ctx, req)
	})
}

func (r *reasoner) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	return do(ctx, r.cfg, "generate:"+req.Node, func() (string, error) {
		return r.next.Generate(ctx, req)
	})
}

type streamingReasoner struct {
	reasoner
	stream ports.StreamingReasoner
}

// GenerateStream retries only while no fragment has reached the caller.
func (r *streamingReasoner) GenerateStream(ctx context.Context, req ports.GenerateRequest, onFragment func(string)) (string, error) {
	emitted := false
	return do(ctx, r.cfg, "generate:"+req.Node, func() (string, error) {
		out, err := r.stream.GenerateStream(ctx, req, func(s string) {
			emitted = true
			onFragment(s)
		})
		if err != nil && emitted {
			return out, backoff.Permanent(err)
		}
		return out, err
	})
}

type tool struct {
	next ports.Tool
	cfg  config
}

// Tool wraps t with retries.
func Tool(t ports.Tool, opts ...Option) ports.Tool {
	return &tool{next: t, cfg: newConfig(opts)}
}

func (t *tool) Name() string        { return t.next.Name() }
func (t *tool) Description() string { return t.next.Description() }

func (t *tool) Invoke(ctx context.Context, input string) (string, error) {
	return do(ctx, t.cfg, "tool:"+t.next.Name(), func() (string, error) {
		return t.next.Invoke(ctx, input)
	})
}

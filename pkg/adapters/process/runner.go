// Package process runs generated programs in a local interpreter.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxOutput = 16 * 1024
)

// Executor is a ports.Tool that feeds its input to an interpreter and returns the output.
// A program that fails still yields its output and exit status, so the caller can explain it.
type Executor struct {
	interp    Interpreter
	baseDir   string
	timeout   time.Duration
	maxOutput int
}

// Option configures the Executor.
type Option func(*Executor)

// WithBaseDir sets the working directory for executed programs.
func WithBaseDir(dir string) Option {
	return func(e *Executor) {
		e.baseDir = dir
	}
}

// WithTimeout bounds each execution.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxOutput truncates the returned output to n bytes.
func WithMaxOutput(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxOutput = n
		}
	}
}

// New creates an Executor for interp.
func New(interp Interpreter, opts ...Option) *Executor {
	e := &Executor{
		interp:    interp,
		timeout:   defaultTimeout,
		maxOutput: defaultMaxOutput,
	}
	if interp.Timeout > 0 {
		e.timeout = interp.Timeout
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lookup selects an interpreter by name from a loaded registry.
func Lookup(registry map[string]Interpreter, name string, opts ...Option) (*Executor, error) {
	interp, ok := registry[name]
	if !ok {
		names := make([]string, 0, len(registry))
		for n := range registry {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("interpreter %q not registered (have: %s)", name, strings.Join(names, ", "))
	}
	return New(interp, opts...), nil
}

func (e *Executor) Name() string { return e.interp.Name }

func (e *Executor) Description() string {
	if e.interp.Description != "" {
		return e.interp.Description
	}
	return fmt.Sprintf("Executes a program with %s and returns its output.", e.interp.Command)
}

// Invoke runs program. Only a failure to start the interpreter or a cancelled caller is
// returned as an error.
func (e *Executor) Invoke(ctx context.Context, program string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.interp.Command, e.interp.Args...)
	cmd.Dir = e.baseDir
	cmd.Stdin = strings.NewReader(program)
	cmd.Env = append(cmd.Environ(), e.environment()...)
	cmd.WaitDelay = time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := e.truncate(strings.TrimSpace(out.String()))

	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("%s\nexecution timed out after %s", output, e.timeout), nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return output, nil
	case errors.As(err, &exitErr):
		return fmt.Sprintf("%s\nexit status %d", output, exitErr.ExitCode()), nil
	}
	return "", fmt.Errorf("run %s: %w", e.interp.Command, err)
}

func (e *Executor) environment() []string {
	keys := make([]string, 0, len(e.interp.Environment))
	for k := range e.interp.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+e.interp.Environment[k])
	}
	return env
}

func (e *Executor) truncate(s string) string {
	if len(s) <= e.maxOutput {
		return s
	}
	return s[:e.maxOutput] + "\n[output truncated]"
}

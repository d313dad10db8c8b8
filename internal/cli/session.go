package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/internal/presentation/tui"
	"github.com/aretw0/switchboard/pkg/domain"
)

// Follower consumes a run's events and reports failed requests.
type Follower interface {
	Follow(run *switchboard.Run) (switchboard.Result, error)
	Fail(err error)
}

// Printer writes a run's events to a terminal.
type Printer struct {
	Out    io.Writer
	Render tui.Renderer
	// Quiet suppresses step headers and the path summary.
	Quiet bool

	streaming bool
}

// NewPrinter returns a Printer on out using the glamour renderer.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{Out: out, Render: tui.NewRenderer()}
}

// Follow prints events until the run ends and returns its result.
func (p *Printer) Follow(run *switchboard.Run) (switchboard.Result, error) {
	for ev := range run.Events() {
		p.event(ev)
	}
	res, err := run.Wait()
	p.endFragments()
	if err != nil {
		return res, err
	}
	if !p.Quiet && len(res.Path) > 0 {
		fmt.Fprintln(p.Out, tui.Dim("path: "+strings.Join(res.Path, " → ")))
	}
	return res, nil
}

func (p *Printer) event(ev domain.Event) {
	switch ev.Type {
	case domain.EventFragment:
		p.streaming = true
		fmt.Fprint(p.Out, ev.Fragment)
	case domain.EventWarning:
		p.endFragments()
		fmt.Fprintln(p.Out, tui.Warning(ev.Warning))
	case domain.EventStep:
		streamed := p.streaming
		p.endFragments()
		if !p.Quiet {
			next := ev.Next
			if ev.Terminal() {
				next = ""
			}
			fmt.Fprintln(p.Out, tui.StepHeader(ev.Step, ev.Node, next))
		}
		if streamed {
			return
		}
		for _, m := range ev.Messages {
			if m.Role == domain.RoleUser {
				continue
			}
			p.message(m)
		}
	}
}

func (p *Printer) endFragments() {
	if p.streaming {
		fmt.Fprintln(p.Out)
		p.streaming = false
	}
}

// Fail prints a failed or rejected request.
func (p *Printer) Fail(err error) {
	p.endFragments()
	fmt.Fprintln(p.Out, tui.Error(err.Error()))
}

func (p *Printer) message(m domain.Message) {
	render := p.Render
	if render == nil {
		render = tui.PlainRenderer
	}
	out, err := render(m.Content)
	if err != nil {
		out, _ = tui.PlainRenderer(m.Content)
	}
	fmt.Fprint(p.Out, out)
}

// Ask runs one request on the user's thread and prints it.
func Ask(ctx context.Context, app *App, p Follower, user, request string) error {
	run, err := app.Engine.Stream(ctx, user, request)
	if err != nil {
		return err
	}
	_, err = p.Follow(run)
	return err
}

// Resume re-enters the user's thread and prints the run.
func Resume(ctx context.Context, app *App, p Follower, user string) error {
	run, err := app.Engine.Resume(ctx, user)
	if err != nil {
		return err
	}
	_, err = p.Follow(run)
	return err
}

// ReplOptions configures RunREPL.
type ReplOptions struct {
	User string
	In   io.Reader
	// Out receives prompts and system messages. Nil keeps the loop silent.
	Out io.Writer
	// Prompt is printed before each read. Empty disables it.
	Prompt string
	// JSONInput unquotes lines that are JSON strings.
	JSONInput bool
}

// RunREPL reads requests line by line and runs each on the user's thread.
// It stops on EOF, on "exit", "quit" or "stop", or when ctx is cancelled.
// A failed run is reported and the loop continues.
func RunREPL(ctx context.Context, app *App, p Follower, opts ReplOptions) error {
	threadID, err := app.Engine.ThreadID(opts.User)
	if err != nil {
		return err
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	printSystemMessage(out, "Thread %s for %q. Type 'exit' to leave.", threadID, opts.User)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(opts.In)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if opts.Prompt != "" {
			fmt.Fprint(out, opts.Prompt)
		}
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
			if opts.JSONInput {
				line = unquote(line)
			}
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "stop":
			printSystemMessage(out, "Bye.")
			return nil
		}

		if err := Ask(ctx, app, p, opts.User, line); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			app.Logger.Warn("Run failed", "thread_id", threadID, "err", err)
			p.Fail(err)
			if resumable(err) {
				printSystemMessage(out, "Completed steps were kept. Run 'switchboard resume --user %s' to continue.", opts.User)
			}
		}
	}
}

// resumable reports whether err came from a run that started, as opposed to a rejected request.
func resumable(err error) bool {
	return !errors.Is(err, domain.ErrEmptyRequest) &&
		!errors.Is(err, domain.ErrThreadBusy) &&
		!errors.Is(err, switchboard.ErrRequestTooLarge) &&
		!errors.Is(err, switchboard.ErrInvalidUTF8)
}

// unquote returns the string a JSON string literal holds, or line unchanged.
func unquote(line string) string {
	var s string
	if err := json.Unmarshal([]byte(line), &s); err == nil {
		return strings.TrimSpace(s)
	}
	return line
}

package cli

import (
	"encoding/json"
	"io"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/observability"
)

// JSONPrinter writes a run as JSON lines: one "event" line per event, then a
// "done" line with the result. Failures are written as an "error" line.
type JSONPrinter struct {
	enc *json.Encoder
}

// NewJSONPrinter returns a JSONPrinter on w.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{enc: json.NewEncoder(w)}
}

type jsonLine struct {
	Type   string        `json:"type"`
	Event  *domain.Event `json:"event,omitempty"`
	Result *jsonResult   `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
	Kind   string        `json:"kind,omitempty"`
}

type jsonResult struct {
	RunID    string          `json:"run_id"`
	ThreadID string          `json:"thread_id"`
	Path     []string        `json:"path"`
	Steps    int             `json:"steps"`
	Terminal bool            `json:"terminal"`
	Warnings []string        `json:"warnings,omitempty"`
	Reply    *domain.Message `json:"reply,omitempty"`
}

// Follow implements Follower.
func (p *JSONPrinter) Follow(run *switchboard.Run) (switchboard.Result, error) {
	for ev := range run.Events() {
		p.enc.Encode(jsonLine{Type: "event", Event: &ev})
	}
	res, err := run.Wait()
	if err != nil {
		return res, err
	}
	out := &jsonResult{
		RunID:    res.RunID,
		ThreadID: res.ThreadID,
		Path:     res.Path,
		Steps:    res.Steps,
		Terminal: res.Terminal,
		Warnings: res.Warnings,
	}
	if last, ok := res.Last(); ok && last.Role != domain.RoleUser {
		out.Reply = &last
	}
	return res, p.enc.Encode(jsonLine{Type: "done", Result: out})
}

// Fail implements Follower.
func (p *JSONPrinter) Fail(err error) {
	p.enc.Encode(jsonLine{Type: "error", Error: err.Error(), Kind: observability.Outcome(err)})
}

package http

import (
	"errors"
	"net/http"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/aretw0/switchboard/pkg/observability"
)

// RunRequest is the body of POST /runs.
type RunRequest struct {
	User    string `json:"user"`
	Request string `json:"request"`
	Stream  *bool  `json:"stream,omitempty"`
}

// Problem describes a failed request or run.
type Problem struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// RunResult is the JSON form of a finished run.
type RunResult struct {
	RunID    string          `json:"run_id"`
	ThreadID string          `json:"thread_id"`
	Path     []string        `json:"path"`
	Steps    int             `json:"steps"`
	Terminal bool            `json:"terminal"`
	Warnings []string        `json:"warnings,omitempty"`
	Reply    *domain.Message `json:"reply,omitempty"`
	Error    *Problem        `json:"error,omitempty"`
}

// Thread is the body of GET /threads/{user}.
type Thread struct {
	ThreadID string           `json:"thread_id"`
	Messages []domain.Message `json:"messages"`
}

// GraphView is the JSON form of the routing graph.
type GraphView struct {
	Entry string       `json:"entry"`
	Nodes []string     `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

func newRunResult(res switchboard.Result, err error) RunResult {
	out := RunResult{
		RunID:    res.RunID,
		ThreadID: res.ThreadID,
		Path:     res.Path,
		Steps:    res.Steps,
		Terminal: res.Terminal,
		Warnings: res.Warnings,
	}
	if out.Path == nil {
		out.Path = []string{}
	}
	if last, ok := res.Last(); ok && last.Role != domain.RoleUser {
		out.Reply = &last
	}
	if err != nil {
		p := newProblem(err)
		out.Error = &p
	}
	return out
}

func newProblem(err error) Problem {
	return Problem{Error: err.Error(), Kind: kindOf(err)}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrThreadBusy):
		return "busy"
	case errors.Is(err, domain.ErrThreadNotFound):
		return "not_found"
	case isBadRequest(err):
		return "invalid_request"
	}
	return observability.Outcome(err)
}

func isBadRequest(err error) bool {
	return errors.Is(err, domain.ErrEmptyRequest) ||
		errors.Is(err, domain.ErrEmptyUsername) ||
		errors.Is(err, switchboard.ErrInvalidUTF8) ||
		errors.Is(err, switchboard.ErrRequestTooLarge)
}

// statusOf maps an engine error to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, switchboard.ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case isBadRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrThreadBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrThreadNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrContractViolation), errors.Is(err, domain.ErrRouting):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrThreadNotFound is returned when a thread ID cannot be found in the store.
var ErrThreadNotFound = errors.New("thread not found")

// ErrThreadBusy is returned when a run is requested for a thread that already has one in flight.
var ErrThreadBusy = errors.New("thread has an active run")

// ErrEmptyRequest is returned when a run is started without any request text.
var ErrEmptyRequest = errors.New("empty request")

// Error classes. Every typed error below matches exactly one of these with errors.Is.
var (
	ErrContractViolation       = errors.New("contract violation")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrRouting                 = errors.New("routing error")
	ErrPersistence             = errors.New("persistence error")
	ErrLoopGuard               = errors.New("step limit exceeded")
)

// ContractViolation is raised when a collaborator answers outside the contract
// it was given, e.g. a decision that is not one of the allowed choices.
type ContractViolation struct {
	Node    string
	Got     string
	Allowed []string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("node %q: choice %q is not one of [%s]", e.Node, e.Got, strings.Join(e.Allowed, ", "))
}

func (e *ContractViolation) Is(target error) bool { return target == ErrContractViolation }

// LoopGuardError is raised when a run exhausts its step budget without reaching End.
// It belongs to the contract violation class.
type LoopGuardError struct {
	Limit int
	Node  string
}

func (e *LoopGuardError) Error() string {
	return fmt.Sprintf("step limit of %d reached before %q could run", e.Limit, e.Node)
}

func (e *LoopGuardError) Is(target error) bool {
	return target == ErrLoopGuard || target == ErrContractViolation
}

// CollaboratorUnavailable wraps a transient failure of an external collaborator
// (reasoning backend, search, code execution). It is the only retryable class.
type CollaboratorUnavailable struct {
	Op  string
	Err error
}

// Unavailable marks err as a transient collaborator failure.
func Unavailable(op string, err error) error {
	return &CollaboratorUnavailable{Op: op, Err: err}
}

func (e *CollaboratorUnavailable) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *CollaboratorUnavailable) Unwrap() error { return e.Err }

func (e *CollaboratorUnavailable) Is(target error) bool { return target == ErrCollaboratorUnavailable }

// RoutingError is raised when a command names a node that is not registered
// or was not declared as a target of the node that produced it.
type RoutingError struct {
	From string
	Next string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("node %q routed to unknown node %q", e.From, e.Next)
}

func (e *RoutingError) Is(target error) bool { return target == ErrRouting }

// PersistenceError wraps a checkpoint store failure.
type PersistenceError struct {
	Op       string
	ThreadID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s thread %s: %v", e.Op, e.ThreadID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// NodeError records which node failed and at which step.
type NodeError struct {
	Node string
	Step int
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q (step %d): %v", e.Node, e.Step, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// IsRetryable reports whether err may succeed when attempted again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCollaboratorUnavailable)
}

// ErrEmptyUsername is returned when a thread ID is requested for a blank username.
var ErrEmptyUsername = errors.New("username is empty")

// Package resilience wraps collaborators with bounded exponential retry.
//
// Only failures classified as domain.CollaboratorUnavailable are retried. Contract
// violations and every other error class surface immediately.
package resilience

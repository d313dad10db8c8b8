/*
Package observability turns engine lifecycle hooks into Prometheus metrics and audit logs.

Both producers return domain.LifecycleHooks, so they compose with Merge and plug into
switchboard.WithLifecycleHooks.
*/
package observability

package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/switchboard/pkg/domain"
)

// AuditHooks logs every run boundary and node transition.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_start", "run_id", e.RunID, "thread_id", e.ThreadID, "start_at", e.StartAt)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			attrs := []any{"run_id", e.RunID, "thread_id", e.ThreadID, "steps", e.Steps, "duration", e.Duration, "outcome", Outcome(e.Err)}
			if e.Err != nil {
				logger.WarnContext(ctx, "run_end", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "run_end", attrs...)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "node_leave", "run_id", e.RunID, "step", e.Step, "node", e.Node, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "node_leave", "run_id", e.RunID, "step", e.Step, "node", e.Node, "next", e.Next, "duration", e.Duration)
		},
	}
}

package ports

import (
	"context"

	"github.com/aretw0/switchboard/pkg/domain"
)

// EventSink receives a copy of every event a run emits.
// A failing sink never affects the run.
type EventSink interface {
	Publish(ctx context.Context, event domain.Event) error
}

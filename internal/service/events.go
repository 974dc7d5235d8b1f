package service

import (
	"context"
	"log/slog"

	"github.com/crestrock/storefront/internal/model"
)

// EventPublisher fans domain events out to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, event model.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, model.Event) error { return nil }

// publish never fails the mutation that produced the event.
func publish(ctx context.Context, events EventPublisher, log *slog.Logger, event model.Event) {
	if err := events.Publish(ctx, event); err != nil {
		log.Error("publish event", "kind", event.Kind, "event_id", event.ID, "error", err)
	}
}

func orDefault(events EventPublisher, log *slog.Logger) (EventPublisher, *slog.Logger) {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return events, log
}

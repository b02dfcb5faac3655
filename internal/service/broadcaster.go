package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bayline/shop-sync-service/internal/adapter/pubsub"
	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/registry"
	"github.com/bayline/shop-sync-service/internal/state"
)

// Broadcaster is the single entry point every state mutation passes through.
// Business operations publish here and nowhere else; they never touch room
// membership directly.
type Broadcaster interface {
	Publish(ctx context.Context, ev event.Eventer)
}

type EventBroadcaster struct {
	hub      registry.Hubber
	store    *state.Store
	exporter pubsub.EventDispatcher
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewEventBroadcaster(hub registry.Hubber, store *state.Store, exporter pubsub.EventDispatcher, logger *slog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		hub:      hub,
		store:    store,
		exporter: exporter,
		logger:   logger,
		tracer:   otel.Tracer("shop-sync/broadcaster"),
	}
}

// Publish folds the event into the snapshot store, fans it out to local
// subscribers, and re-exports bus-worthy events for other instances. None of
// the three legs may fail the others, and none of them reports failure back
// to the producing business operation.
func (b *EventBroadcaster) Publish(ctx context.Context, ev event.Eventer) {
	_, span := b.tracer.Start(ctx, "broadcaster.publish",
		trace.WithAttributes(
			attribute.String("event.kind", ev.GetKind().Wire()),
			attribute.String("event.room", ev.GetRoomKey()),
		))
	defer span.End()

	// Snapshot first: a client falling back to polling must observe the new
	// state within one polling interval even if the live push misses it.
	b.store.Apply(ev)

	// Publishing to a room with zero subscribers is a normal no-op.
	b.hub.Publish(ev)

	if exp, ok := ev.(event.Exportable); ok && exp.GetRoutingKey() != "" {
		if err := b.exporter.Publish(ctx, ev); err != nil {
			b.logger.Error("event export failed",
				"event", ev.GetKind().Wire(),
				"room", ev.GetRoomKey(),
				"error", err,
			)
		}
	}
}

package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/bayline/shop-sync-service/internal/config"
	"github.com/bayline/shop-sync-service/internal/domain/event"
)

// SyncExchange is the cross-instance fan-out exchange: every instance
// exports its locally produced bus-worthy events here and consumes everyone
// else's.
const SyncExchange = "shop_sync.events"

// SyncTopic builds the fan-out routing key for an event kind.
func SyncTopic(kind event.Kind) string {
	return "shop_sync." + kind.Wire()
}

// Envelope is the bus wire form of a StateEvent. Instances deserialize it,
// rebuild the event locally, and fan it out to their own subscribers.
type Envelope struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	RoomKey         string          `json:"room_key"`
	OriginPrincipal string          `json:"origin_principal,omitempty"`
	Version         uint64          `json:"version,omitempty"`
	OccurredAt      int64           `json:"occurred_at"`
	Payload         json.RawMessage `json:"payload"`
}

// EventDispatcher defines the high-level contract for outgoing events.
// Handlers stay agnostic of the transport implementation behind it.
type EventDispatcher interface {
	Publish(ctx context.Context, ev event.Eventer) error
	Publisher() message.Publisher
}

type eventDispatcher struct {
	publisher message.Publisher
	nodeID    string
}

// NewEventDispatcher returns the interface instead of the concrete struct.
func NewEventDispatcher(cfg *config.Config, pub message.Publisher) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		nodeID:    cfg.Service.NodeID,
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	exp, ok := ev.(event.Exportable)
	if !ok || exp.GetRoutingKey() == "" {
		return nil
	}

	body, err := json.Marshal(ev.GetPayload())
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal payload: %w", err)
	}
	payload, err := json.Marshal(Envelope{
		ID:              ev.GetID(),
		Kind:            ev.GetKind().Wire(),
		RoomKey:         ev.GetRoomKey(),
		OriginPrincipal: ev.GetOriginPrincipal(),
		Version:         ev.GetVersion(),
		OccurredAt:      ev.GetOccurredAt(),
		Payload:         body,
	})
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal envelope: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("x-routing-key", exp.GetRoutingKey())
	// Consumers on the same node drop their own exports by this marker.
	msg.Metadata.Set("x-origin-node", d.nodeID)

	if err := d.publisher.Publish(exp.GetRoutingKey(), msg); err != nil {
		return fmt.Errorf("event dispatcher: publish to %s: %w", exp.GetRoutingKey(), err)
	}

	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}

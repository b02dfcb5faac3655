package amqp

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/bayline/shop-sync-service/internal/adapter/pubsub"
	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

// OnSyncFanout re-imports events exported by sibling instances. The rebuilt
// event carries no routing key, so it is delivered locally and never bounces
// back onto the bus.
func (h *MessageHandler) OnSyncFanout(msg *message.Message) error {
	if msg.Metadata.Get("x-origin-node") == h.nodeID {
		return nil // Our own export; local subscribers were served directly.
	}

	var env pubsub.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		h.logger.Error("fanout decode failed", "err", err, "msg_id", msg.UUID)
		return nil
	}

	kind, ok := event.KindFromWire(env.Kind)
	if !ok {
		h.logger.Warn("fanout unknown kind", "kind", env.Kind, "msg_id", msg.UUID)
		return nil
	}

	payload, err := decodeSyncPayload(kind, env.Payload)
	if err != nil {
		h.logger.Error("fanout payload decode failed", "kind", env.Kind, "err", err)
		return nil
	}

	ev := event.Restore(env.ID, env.RoomKey, kind, env.OccurredAt, payload,
		event.WithVersion(env.Version),
		event.WithOriginPrincipal(env.OriginPrincipal))
	h.broadcaster.Publish(msg.Context(), ev)
	return nil
}

func decodeSyncPayload(kind event.Kind, raw json.RawMessage) (any, error) {
	var target any
	switch kind {
	case event.TypingStarted, event.TypingStopped:
		target = &model.TypingPayload{}
	case event.MessageCreated:
		target = &model.ChatMessage{}
	case event.BayStatusChanged:
		target = &model.BayStatus{}
	case event.QueueStatusChanged:
		target = &model.QueueEntry{}
	case event.AppointmentConfirmed, event.PickupReady:
		target = &model.AppointmentNotice{}
	case event.LowStockAlert:
		target = &model.StockItem{}
	case event.ServiceRecommended:
		target = &model.Recommendation{}
	default:
		return nil, fmt.Errorf("kind %s is not fanout-eligible", kind.Wire())
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, err
	}
	return target, nil
}

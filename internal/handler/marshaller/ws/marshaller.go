package wsmarshaller

import (
	"encoding/json"
	"fmt"

	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

// WSEvent is the wire envelope for every server-to-client frame.
type WSEvent struct {
	Event   string `json:"event"` // e.g. "message_created", "bay_status_changed"
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Version uint64 `json:"version,omitempty"`
	Payload any    `json:"payload"`
}

// MarshallDeliveryEvent prepares one event for websocket transmission. A
// room delivers the same event to every member, so the encoded bytes are
// computed once per event and cached on it.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		if data, ok := cached.([]byte); ok {
			return data, nil
		}
	}

	res := &WSEvent{
		Event:   ev.GetKind().Wire(),
		ID:      ev.GetID(),
		SentAt:  ev.GetOccurredAt(),
		Version: ev.GetVersion(),
	}

	payload, err := mapPayload(ev.GetKind(), ev.GetPayload())
	if err != nil {
		return nil, err
	}
	res.Payload = payload

	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", res.Event, err)
	}

	ev.SetCached(data)
	return data, nil
}

// mapPayload is the closed mapping from event kind to wire payload. Adding a
// kind without extending this switch surfaces immediately in tests, not as a
// silently empty frame.
func mapPayload(kind event.Kind, payload any) (any, error) {
	switch kind {
	case event.ConnectionReady:
		p, ok := payload.(*model.ReadyPayload)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		return p, nil
	case event.ConnectionClosed:
		p, ok := payload.(*model.GoodbyePayload)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		return p, nil
	case event.MessageCreated:
		p, ok := payload.(*model.ChatMessage)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		return mapMessage(p), nil
	case event.BayStatusChanged:
		p, ok := payload.(*model.BayStatus)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		return mapBay(p), nil
	case event.QueueStatusChanged:
		p, ok := payload.(*model.QueueEntry)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		return mapQueue(p), nil
	case event.TypingStarted, event.TypingStopped:
		p, ok := payload.(*model.TypingPayload)
		if !ok {
			return nil, mismatch(kind, payload)
		}
		return p, nil
	case event.AppointmentConfirmed, event.PickupReady,
		event.LowStockAlert, event.ServiceRecommended:
		// Offline-notification kinds cross the wire untranslated; only
		// staff dashboards subscribe to them.
		return payload, nil
	}
	return nil, fmt.Errorf("no wire mapping for event kind %d", kind)
}

func mismatch(kind event.Kind, payload any) error {
	return fmt.Errorf("payload %T does not match event kind %s", payload, kind.Wire())
}

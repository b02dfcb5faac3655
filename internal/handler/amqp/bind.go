package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// Bind connects watermill to domain logic, handling panic recovery and
// payload decoding. Malformed payloads are acked: a message that cannot be
// decoded today cannot be decoded on redelivery either, so retrying it only
// clogs the queue.
func Bind[T any](h *MessageHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic recovered",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("decode failed", "err", err, "msg_id", msg.UUID)
			return nil // ACK: poison pill protection.
		}

		// Business failure returns the error, which triggers the retry
		// policy and ultimately the poison queue.
		return fn(msg.Context(), payload)
	}
}

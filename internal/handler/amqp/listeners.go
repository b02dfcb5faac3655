package amqp

import (
	"context"

	"github.com/google/uuid"

	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

// Bus payload shapes as published by shop-core. Versioned independently of
// the internal models on purpose; shop-core owns these contracts.

type AppointmentConfirmedV1 struct {
	AppointmentID string `json:"appointment_id"`
	CustomerID    string `json:"customer_id"`
	Vehicle       string `json:"vehicle"`
	Service       string `json:"service"`
	ScheduledAt   int64  `json:"scheduled_at"`
}

type RecommendationV1 struct {
	AppointmentID string `json:"appointment_id"`
	CustomerID    string `json:"customer_id"`
	Vehicle       string `json:"vehicle"`
	Service       string `json:"service"`
	Notes         string `json:"notes"`
}

type BayStatusV1 struct {
	BayID         string `json:"bay_id"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	AppointmentID string `json:"appointment_id"`
	Vehicle       string `json:"vehicle"`
	Technician    string `json:"technician"`
	UpdatedAt     int64  `json:"updated_at"`
}

type QueueEntryV1 struct {
	AppointmentID string `json:"appointment_id"`
	CustomerID    string `json:"customer_id"`
	Vehicle       string `json:"vehicle"`
	Status        string `json:"status"`
	Position      int    `json:"position"`
	EstimatedWait int64  `json:"estimated_wait"`
	UpdatedAt     int64  `json:"updated_at"`
}

type StockLowV1 struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Minimum   int    `json:"minimum"`
	ManagerID string `json:"manager_id"`
}

type ChatMessageV1 struct {
	MessageID     string `json:"message_id"`
	AppointmentID string `json:"appointment_id"`
	SenderID      string `json:"sender_id"`
	SenderName    string `json:"sender_name"`
	Role          string `json:"role"`
	Text          string `json:"text"`
	CreatedAt     int64  `json:"created_at"`
}

func (h *MessageHandler) OnAppointmentConfirmedV1(ctx context.Context, raw *AppointmentConfirmedV1) error {
	ev := event.New(model.AppointmentRoom(raw.AppointmentID), event.AppointmentConfirmed,
		&model.AppointmentNotice{
			AppointmentID: raw.AppointmentID,
			Vehicle:       raw.Vehicle,
			ScheduledAt:   raw.ScheduledAt,
			Status:        "confirmed",
		})

	h.broadcaster.Publish(ctx, ev)
	h.offline(ctx, ev, raw.CustomerID)
	return nil
}

func (h *MessageHandler) OnServiceRecommendedV1(ctx context.Context, raw *RecommendationV1) error {
	ev := event.New(model.AppointmentRoom(raw.AppointmentID), event.ServiceRecommended,
		&model.Recommendation{
			AppointmentID: raw.AppointmentID,
			Vehicle:       raw.Vehicle,
			Service:       raw.Service,
			Notes:         raw.Notes,
		})

	h.broadcaster.Publish(ctx, ev)
	h.offline(ctx, ev, raw.CustomerID)
	return nil
}

func (h *MessageHandler) OnBayStatusChangedV1(ctx context.Context, raw *BayStatusV1) error {
	h.broadcaster.Publish(ctx, event.New(model.RoomBays, event.BayStatusChanged,
		&model.BayStatus{
			BayID:         raw.BayID,
			Status:        parseBayState(raw.Status),
			Progress:      raw.Progress,
			AppointmentID: raw.AppointmentID,
			Vehicle:       raw.Vehicle,
			Technician:    raw.Technician,
			UpdatedAt:     raw.UpdatedAt,
		}))
	return nil
}

func (h *MessageHandler) OnQueueStatusChangedV1(ctx context.Context, raw *QueueEntryV1) error {
	ev := event.New(model.RoomQueue, event.QueueStatusChanged,
		&model.QueueEntry{
			AppointmentID: raw.AppointmentID,
			Status:        raw.Status,
			Position:      raw.Position,
			EstimatedWait: raw.EstimatedWait,
			UpdatedAt:     raw.UpdatedAt,
		})

	h.broadcaster.Publish(ctx, ev)
	h.offline(ctx, ev, raw.CustomerID)

	// "ready" is also the pickup moment for the appointment's own room and
	// for the customer's phone.
	if raw.Status == "ready" {
		pickup := event.New(model.AppointmentRoom(raw.AppointmentID), event.PickupReady,
			&model.AppointmentNotice{
				AppointmentID: raw.AppointmentID,
				Vehicle:       raw.Vehicle,
				Status:        "ready",
			},
			event.WithPriority(event.PriorityHigh))
		h.broadcaster.Publish(ctx, pickup)
		h.offline(ctx, pickup, raw.CustomerID)
	}
	return nil
}

func (h *MessageHandler) OnStockLowV1(ctx context.Context, raw *StockLowV1) error {
	ev := event.New(model.RoomBays, event.LowStockAlert,
		&model.StockItem{
			SKU:      raw.SKU,
			Name:     raw.Name,
			Quantity: raw.Quantity,
			Minimum:  raw.Minimum,
		})

	h.broadcaster.Publish(ctx, ev)
	h.offline(ctx, ev, raw.ManagerID)
	return nil
}

func (h *MessageHandler) OnChatMessageCreatedV1(ctx context.Context, raw *ChatMessageV1) error {
	id, err := uuid.Parse(raw.MessageID)
	if err != nil {
		id = uuid.New()
	}
	// The bus contract carries no connection id, only the sender. Marking
	// the origin principal keeps the sender's own connections from receiving
	// an echo of a message they already rendered locally.
	h.broadcaster.Publish(ctx, event.New(model.AppointmentRoom(raw.AppointmentID), event.MessageCreated,
		&model.ChatMessage{
			ID:            id,
			AppointmentID: raw.AppointmentID,
			SenderID:      raw.SenderID,
			SenderName:    raw.SenderName,
			Role:          parseRole(raw.Role),
			Text:          raw.Text,
			CreatedAt:     raw.CreatedAt,
		},
		event.WithOriginPrincipal(raw.SenderID)))
	return nil
}

// offline hands one event to the notification dispatcher. Its results never
// affect the bus ack: the broadcast already succeeded, and per-channel
// outcomes are data, not errors.
func (h *MessageHandler) offline(ctx context.Context, ev event.Eventer, principalID string) {
	if principalID == "" {
		return
	}

	rcpt, err := h.resolver.Resolve(ctx, principalID)
	if err != nil {
		h.logger.Warn("offline notification skipped",
			"event", ev.GetKind().Wire(),
			"principal", principalID,
			"error", err,
		)
		return
	}

	h.notifier.Dispatch(ctx, ev, rcpt)
}

func parseBayState(s string) model.BayState {
	switch s {
	case "available":
		return model.BayAvailable
	case "occupied":
		return model.BayOccupied
	case "maintenance":
		return model.BayMaintenance
	}
	return 0
}

func parseRole(s string) model.SenderRole {
	switch s {
	case "staff":
		return model.RoleStaff
	case "system":
		return model.RoleSystem
	}
	return model.RoleCustomer
}

package amqp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayline/shop-sync-service/internal/adapter/pubsub"
	"github.com/bayline/shop-sync-service/internal/config"
	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
	"github.com/bayline/shop-sync-service/internal/domain/registry"
	"github.com/bayline/shop-sync-service/internal/notify"
	"github.com/bayline/shop-sync-service/internal/service"
	"github.com/bayline/shop-sync-service/internal/state"
)

type captureBroadcaster struct {
	mu     sync.Mutex
	events []event.Eventer
}

func (c *captureBroadcaster) Publish(_ context.Context, ev event.Eventer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureBroadcaster) all() []event.Eventer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Eventer(nil), c.events...)
}

type staticResolver struct {
	rcpt model.Recipient
}

func (r *staticResolver) Resolve(_ context.Context, principalID string) (model.Recipient, error) {
	rcpt := r.rcpt
	rcpt.PrincipalID = principalID
	return rcpt, nil
}

func newTestHandler(t *testing.T) (*MessageHandler, *captureBroadcaster) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Service.NodeID = "node-test"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bc := &captureBroadcaster{}
	h := NewMessageHandler(
		cfg,
		bc,
		&staticResolver{},
		notify.NewDispatcher(notify.NewSMSSender(cfg), notify.NewEmailSender(cfg), logger),
		nil,
		logger,
	)
	return h, bc
}

func TestOnBayStatusChangedMapsToBayRoom(t *testing.T) {
	h, bc := newTestHandler(t)

	err := h.OnBayStatusChangedV1(context.Background(), &BayStatusV1{
		BayID:      "bay-2",
		Status:     "occupied",
		Progress:   45,
		Vehicle:    "2021 Civic",
		Technician: "Sam",
	})
	require.NoError(t, err)

	events := bc.all()
	require.Len(t, events, 1)
	assert.Equal(t, event.BayStatusChanged, events[0].GetKind())
	assert.Equal(t, model.RoomBays, events[0].GetRoomKey())

	bay := events[0].GetPayload().(*model.BayStatus)
	assert.Equal(t, model.BayOccupied, bay.Status)
	assert.Equal(t, 45, bay.Progress)
}

func TestOnQueueStatusChangedEmitsQueueUpdate(t *testing.T) {
	h, bc := newTestHandler(t)

	err := h.OnQueueStatusChangedV1(context.Background(), &QueueEntryV1{
		AppointmentID: "appt-9",
		CustomerID:    "cust-9",
		Status:        "waiting",
		Position:      2,
	})
	require.NoError(t, err)

	events := bc.all()
	require.Len(t, events, 1)
	assert.Equal(t, event.QueueStatusChanged, events[0].GetKind())
	assert.Equal(t, model.RoomQueue, events[0].GetRoomKey())
}

func TestOnQueueStatusReadyAlsoEmitsPickup(t *testing.T) {
	h, bc := newTestHandler(t)

	err := h.OnQueueStatusChangedV1(context.Background(), &QueueEntryV1{
		AppointmentID: "appt-9",
		CustomerID:    "cust-9",
		Vehicle:       "2021 Civic",
		Status:        "ready",
	})
	require.NoError(t, err)

	events := bc.all()
	require.Len(t, events, 2)
	assert.Equal(t, event.QueueStatusChanged, events[0].GetKind())

	pickup := events[1]
	assert.Equal(t, event.PickupReady, pickup.GetKind())
	assert.Equal(t, model.AppointmentRoom("appt-9"), pickup.GetRoomKey())
	notice := pickup.GetPayload().(*model.AppointmentNotice)
	assert.Equal(t, "ready", notice.Status)
}

func TestOnChatMessageCreatedTargetsAppointmentRoom(t *testing.T) {
	h, bc := newTestHandler(t)

	err := h.OnChatMessageCreatedV1(context.Background(), &ChatMessageV1{
		MessageID:     "not-a-uuid",
		AppointmentID: "appt-5",
		SenderID:      "staff-1",
		Role:          "staff",
		Text:          "On the lift now",
	})
	require.NoError(t, err)

	events := bc.all()
	require.Len(t, events, 1)
	assert.Equal(t, model.AppointmentRoom("appt-5"), events[0].GetRoomKey())

	msg := events[0].GetPayload().(*model.ChatMessage)
	assert.Equal(t, model.RoleStaff, msg.Role)
	assert.NotEmpty(t, msg.ID, "unparseable message id is replaced, not fatal")
	assert.Equal(t, "staff-1", events[0].GetOriginPrincipal())
}

func TestOnChatMessageCreatedDoesNotEchoToSender(t *testing.T) {
	cfg := &config.Config{}
	cfg.Service.NodeID = "node-test"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hub := registry.NewHub(logger)
	t.Cleanup(hub.Shutdown)

	sender := registry.NewConnector(context.Background(), "cust-A", 8)
	observer := registry.NewConnector(context.Background(), "cust-B", 8)
	defer sender.Close()
	defer observer.Close()

	room := model.AppointmentRoom("appt-42")
	hub.Join(room, sender)
	hub.Join(room, observer)

	h := NewMessageHandler(
		cfg,
		service.NewEventBroadcaster(hub, state.NewStore(), nil, logger),
		&staticResolver{},
		notify.NewDispatcher(notify.NewSMSSender(cfg), notify.NewEmailSender(cfg), logger),
		nil,
		logger,
	)

	err := h.OnChatMessageCreatedV1(context.Background(), &ChatMessageV1{
		MessageID:     "b3c7c9f0-0000-0000-0000-000000000001",
		AppointmentID: "appt-42",
		SenderID:      "cust-A",
		Role:          "customer",
		Text:          "is my car ready?",
	})
	require.NoError(t, err)

	select {
	case ev := <-observer.Recv():
		assert.Equal(t, event.MessageCreated, ev.GetKind())
	case <-time.After(time.Second):
		t.Fatal("other member never received the chat message")
	}

	select {
	case ev := <-sender.Recv():
		t.Fatalf("sender received echo of its own message: %s", ev.GetKind().Wire())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBindAcksUndecodablePayload(t *testing.T) {
	h, bc := newTestHandler(t)

	called := false
	handler := Bind(h, func(ctx context.Context, payload *BayStatusV1) error {
		called = true
		return nil
	})

	err := handler(message.NewMessage("m1", []byte("{not json")))

	assert.NoError(t, err, "poison payloads are acked, not retried")
	assert.False(t, called)
	assert.Empty(t, bc.all())
}

func TestFanoutSkipsOwnExports(t *testing.T) {
	h, bc := newTestHandler(t)

	msg := message.NewMessage("m1", []byte(`{}`))
	msg.Metadata.Set("x-origin-node", "node-test")

	require.NoError(t, h.OnSyncFanout(msg))
	assert.Empty(t, bc.all())
}

func TestFanoutRestoresRemoteEvent(t *testing.T) {
	h, bc := newTestHandler(t)

	payload, err := json.Marshal(&model.TypingPayload{RoomKey: "appt-3", PrincipalID: "cust-2"})
	require.NoError(t, err)
	body, err := json.Marshal(pubsub.Envelope{
		ID:              "ev-123",
		Kind:            "typing_start",
		RoomKey:         "appt-3",
		OriginPrincipal: "cust-2",
		OccurredAt:      1700000000000,
		Payload:         payload,
	})
	require.NoError(t, err)

	msg := message.NewMessage("m1", body)
	msg.Metadata.Set("x-origin-node", "node-other")

	require.NoError(t, h.OnSyncFanout(msg))

	events := bc.all()
	require.Len(t, events, 1)
	restored := events[0]
	assert.Equal(t, "ev-123", restored.GetID())
	assert.Equal(t, event.TypingStarted, restored.GetKind())
	assert.Equal(t, "appt-3", restored.GetRoomKey())
	assert.Equal(t, int64(1700000000000), restored.GetOccurredAt())
	assert.Equal(t, "cust-2", restored.GetOriginPrincipal())

	// Restored events never carry a routing key, so they cannot loop back
	// onto the bus.
	exp, ok := restored.(event.Exportable)
	require.True(t, ok)
	assert.Empty(t, exp.GetRoutingKey())
}

func TestFanoutAcksUnknownKind(t *testing.T) {
	h, bc := newTestHandler(t)

	body, err := json.Marshal(pubsub.Envelope{ID: "ev-1", Kind: "mystery_event", RoomKey: "r"})
	require.NoError(t, err)

	msg := message.NewMessage("m1", body)
	msg.Metadata.Set("x-origin-node", "node-other")

	assert.NoError(t, h.OnSyncFanout(msg))
	assert.Empty(t, bc.all())
}

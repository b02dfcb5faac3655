package wsmarshaller

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

func TestMarshalMessageCreated(t *testing.T) {
	msgID := uuid.New()
	ev := event.New("appt-1", event.MessageCreated, &model.ChatMessage{
		ID:            msgID,
		AppointmentID: "appt-1",
		SenderID:      "staff-7",
		SenderName:    "Lee",
		Role:          model.RoleStaff,
		Text:          "Your brakes are done",
		CreatedAt:     1700000000000,
	})

	data, err := MarshallDeliveryEvent(ev)
	require.NoError(t, err)

	var frame struct {
		Event   string    `json:"event"`
		ID      string    `json:"id"`
		SentAt  int64     `json:"sent_at"`
		Payload WSMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))

	assert.Equal(t, "message_created", frame.Event)
	assert.Equal(t, ev.GetID(), frame.ID)
	assert.Equal(t, ev.GetOccurredAt(), frame.SentAt)
	assert.Equal(t, msgID.String(), frame.Payload.ID)
	assert.Equal(t, "staff", frame.Payload.Role)
	assert.Equal(t, "Your brakes are done", frame.Payload.Text)
}

func TestMarshalBayStatusUsesLabels(t *testing.T) {
	ev := event.New("bays", event.BayStatusChanged, &model.BayStatus{
		BayID:    "bay-3",
		Status:   model.BayMaintenance,
		Progress: 0,
	})

	data, err := MarshallDeliveryEvent(ev)
	require.NoError(t, err)

	var frame struct {
		Event   string      `json:"event"`
		Payload WSBayStatus `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))

	assert.Equal(t, "bay_status_changed", frame.Event)
	assert.Equal(t, "maintenance", frame.Payload.Status)
}

func TestMarshalCachesEncodedBytes(t *testing.T) {
	ev := event.New("queue", event.QueueStatusChanged, &model.QueueEntry{AppointmentID: "a1", Position: 2})

	first, err := MarshallDeliveryEvent(ev)
	require.NoError(t, err)
	require.NotNil(t, ev.GetCached())

	second, err := MarshallDeliveryEvent(ev)
	require.NoError(t, err)

	// Same backing bytes: the room fans one event out to many members.
	assert.Equal(t, &first[0], &second[0])
}

func TestMarshalRejectsMismatchedPayload(t *testing.T) {
	ev := event.New("bays", event.BayStatusChanged, &model.QueueEntry{AppointmentID: "a1"})

	_, err := MarshallDeliveryEvent(ev)

	require.Error(t, err)
	assert.Nil(t, ev.GetCached())
}

func TestMarshalEveryKindHasWireMapping(t *testing.T) {
	cases := []struct {
		kind    event.Kind
		payload any
	}{
		{event.ConnectionReady, &model.ReadyPayload{ConnectionID: "c1"}},
		{event.ConnectionClosed, &model.GoodbyePayload{Reason: "SHUTDOWN"}},
		{event.MessageCreated, &model.ChatMessage{}},
		{event.BayStatusChanged, &model.BayStatus{}},
		{event.QueueStatusChanged, &model.QueueEntry{}},
		{event.TypingStarted, &model.TypingPayload{}},
		{event.TypingStopped, &model.TypingPayload{}},
		{event.AppointmentConfirmed, &model.AppointmentNotice{}},
		{event.PickupReady, &model.AppointmentNotice{}},
		{event.LowStockAlert, &model.StockItem{}},
		{event.ServiceRecommended, &model.Recommendation{}},
	}

	for _, tc := range cases {
		t.Run(tc.kind.Wire(), func(t *testing.T) {
			ev := event.New("room", tc.kind, tc.payload)
			data, err := MarshallDeliveryEvent(ev)
			require.NoError(t, err)
			assert.Contains(t, string(data), tc.kind.Wire())
		})
	}
}

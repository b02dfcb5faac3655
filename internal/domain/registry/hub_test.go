package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	t.Cleanup(h.Shutdown)
	return h
}

func recvEvent(t *testing.T, conn Connector, timeout time.Duration) event.Eventer {
	t.Helper()
	select {
	case ev, ok := <-conn.Recv():
		require.True(t, ok, "connection closed while waiting for event")
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHubPublishWithoutSubscribersIsNoOp(t *testing.T) {
	h := newTestHub(t)

	ok := h.Publish(event.New("bays", event.BayStatusChanged, &model.BayStatus{BayID: "bay-1"}))

	assert.False(t, ok)
	assert.Equal(t, 0, h.Stats().TotalRooms)
}

func TestHubDeliversInPublishOrderPerRoom(t *testing.T) {
	h := newTestHub(t)
	conn := NewConnector(context.Background(), "cust-1", 128)
	defer conn.Close()

	h.Join("appt-42", conn)

	const n = 50
	for i := 0; i < n; i++ {
		msg := &model.ChatMessage{AppointmentID: "appt-42", Text: fmt.Sprintf("msg-%d", i)}
		require.True(t, h.Publish(event.New("appt-42", event.MessageCreated, msg)))
	}

	for i := 0; i < n; i++ {
		ev := recvEvent(t, conn, time.Second)
		msg := ev.GetPayload().(*model.ChatMessage)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Text)
	}
}

func TestHubJoinIsIdempotent(t *testing.T) {
	h := newTestHub(t)
	conn := NewConnector(context.Background(), "cust-1", 8)
	defer conn.Close()

	h.Join("queue", conn)
	h.Join("queue", conn)

	assert.Equal(t, 1, h.Members("queue"))

	h.Publish(event.New("queue", event.QueueStatusChanged, &model.QueueEntry{AppointmentID: "a1"}))
	recvEvent(t, conn, time.Second)

	select {
	case <-conn.Recv():
		t.Fatal("double join produced a duplicate delivery")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubLastLeaveReclaimsRoom(t *testing.T) {
	h := newTestHub(t)
	conn := NewConnector(context.Background(), "cust-1", 8)
	defer conn.Close()

	h.Join("bays", conn)
	require.Equal(t, 1, h.Stats().TotalRooms)

	h.Leave("bays", conn.GetID())

	assert.Equal(t, 0, h.Members("bays"))
	assert.Equal(t, 0, h.Stats().TotalRooms)

	// Leaving again must be harmless.
	h.Leave("bays", conn.GetID())
}

func TestRoomSkipsOriginConnection(t *testing.T) {
	h := newTestHub(t)
	origin := NewConnector(context.Background(), "cust-1", 8)
	other := NewConnector(context.Background(), "cust-2", 8)
	defer origin.Close()
	defer other.Close()

	h.Join("appt-7", origin)
	h.Join("appt-7", other)

	h.Publish(event.New("appt-7", event.TypingStarted,
		&model.TypingPayload{RoomKey: "appt-7", PrincipalID: "cust-1"},
		event.WithOrigin(origin.GetID().String()),
	))

	ev := recvEvent(t, other, time.Second)
	assert.Equal(t, event.TypingStarted, ev.GetKind())

	select {
	case <-origin.Recv():
		t.Fatal("origin connection received an echo of its own event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoomSkipsSenderPrincipalConnections(t *testing.T) {
	h := newTestHub(t)

	// The sender is connected twice (phone and kiosk); neither connection
	// may receive an echo of the sender's own message.
	senderPhone := NewConnector(context.Background(), "cust-1", 8)
	senderKiosk := NewConnector(context.Background(), "cust-1", 8)
	observer := NewConnector(context.Background(), "staff-1", 8)
	defer senderPhone.Close()
	defer senderKiosk.Close()
	defer observer.Close()

	h.Join("appt-42", senderPhone)
	h.Join("appt-42", senderKiosk)
	h.Join("appt-42", observer)

	h.Publish(event.New("appt-42", event.MessageCreated,
		&model.ChatMessage{AppointmentID: "appt-42", SenderID: "cust-1", Text: "done yet?"},
		event.WithOriginPrincipal("cust-1"),
	))

	ev := recvEvent(t, observer, time.Second)
	assert.Equal(t, event.MessageCreated, ev.GetKind())

	select {
	case <-senderPhone.Recv():
		t.Fatal("sender connection received an echo of its own message")
	case <-senderKiosk.Recv():
		t.Fatal("sender connection received an echo of its own message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoomStalledMemberDoesNotBlockOthers(t *testing.T) {
	h := newTestHub(t, WithDeliveryTimeout(10*time.Millisecond))

	// The stalled member has a single-slot buffer nobody drains.
	stalled := NewConnector(context.Background(), "cust-slow", 1)
	healthy := NewConnector(context.Background(), "cust-fast", 64)
	defer stalled.Close()
	defer healthy.Close()

	h.Join("bays", stalled)
	h.Join("bays", healthy)

	const n = 10
	for i := 0; i < n; i++ {
		h.Publish(event.New("bays", event.BayStatusChanged,
			&model.BayStatus{BayID: fmt.Sprintf("bay-%d", i)}))
	}

	for i := 0; i < n; i++ {
		ev := recvEvent(t, healthy, time.Second)
		bay := ev.GetPayload().(*model.BayStatus)
		assert.Equal(t, fmt.Sprintf("bay-%d", i), bay.BayID)
	}
}

func TestConnectorShedsLowPriorityUnderBackpressure(t *testing.T) {
	conn := NewConnector(context.Background(), "cust-1", 1)
	defer conn.Close()

	require.True(t, conn.Send(event.New("r", event.MessageCreated, &model.ChatMessage{}), 5*time.Millisecond))

	// Buffer is full; a low-priority event is dropped outright.
	typing := event.New("r", event.TypingStarted, &model.TypingPayload{}, event.WithPriority(event.PriorityLow))
	assert.False(t, conn.Send(typing, 5*time.Millisecond))
	assert.Equal(t, uint64(1), conn.DroppedCount())
}

func TestHubStatsSnapshot(t *testing.T) {
	h := newTestHub(t)
	a := NewConnector(context.Background(), "cust-1", 8)
	b := NewConnector(context.Background(), "cust-2", 8)
	defer a.Close()
	defer b.Close()

	h.Join("bays", a)
	h.Join("bays", b)
	h.Join("queue", a)

	stats := h.Stats()
	assert.Equal(t, 2, stats.TotalRooms)
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Len(t, stats.Rooms, 2)
}

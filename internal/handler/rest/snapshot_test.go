package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
	"github.com/bayline/shop-sync-service/internal/domain/registry"
	"github.com/bayline/shop-sync-service/internal/state"
)

func newSnapshotServer(t *testing.T) (*httptest.Server, *state.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := state.NewStore()
	hub := registry.NewHub(logger)
	t.Cleanup(hub.Shutdown)

	h := NewSnapshotHandler(store, hub, logger)
	r := chi.NewRouter()
	r.Get("/service-bays", h.Bays)
	r.Get("/service-bays/queue", h.Queue)
	r.Get("/chat/appointment/{appointmentID}", h.ChatTail)
	r.Get("/stats", h.Stats)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestSnapshotEndpointsServeWholesaleState(t *testing.T) {
	srv, store := newSnapshotServer(t)

	store.Apply(event.New("bays", event.BayStatusChanged, &model.BayStatus{BayID: "bay-1", Status: model.BayOccupied}))
	store.Apply(event.New("queue", event.QueueStatusChanged, &model.QueueEntry{AppointmentID: "a1", Status: "waiting", Position: 1}))
	store.Apply(event.New("appt-a1", event.MessageCreated, &model.ChatMessage{AppointmentID: "a1", Text: "hello"}))

	var bays struct {
		Bays      []model.BayStatus `json:"bays"`
		FetchedAt int64             `json:"fetched_at"`
	}
	getJSON(t, srv.URL+"/service-bays", &bays)
	require.Len(t, bays.Bays, 1)
	assert.Equal(t, "bay-1", bays.Bays[0].BayID)
	assert.Positive(t, bays.FetchedAt)

	var queue struct {
		Queue []model.QueueEntry `json:"queue"`
	}
	getJSON(t, srv.URL+"/service-bays/queue", &queue)
	require.Len(t, queue.Queue, 1)

	var chat struct {
		AppointmentID string              `json:"appointment_id"`
		Messages      []model.ChatMessage `json:"messages"`
	}
	getJSON(t, srv.URL+"/chat/appointment/a1", &chat)
	assert.Equal(t, "a1", chat.AppointmentID)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, "hello", chat.Messages[0].Text)
}

func TestSnapshotUnknownAppointmentIsEmptyNotError(t *testing.T) {
	srv, _ := newSnapshotServer(t)

	var chat struct {
		Messages []model.ChatMessage `json:"messages"`
	}
	getJSON(t, srv.URL+"/chat/appointment/nope", &chat)
	assert.Empty(t, chat.Messages)
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newSnapshotServer(t)

	var stats model.HubStats
	getJSON(t, srv.URL+"/stats", &stats)
	assert.Equal(t, 0, stats.TotalRooms)
}

package fallback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayline/shop-sync-service/internal/domain/model"
)

// TestWireCompatibleWithServerModels guards the mirror types against drift:
// whatever the snapshot endpoints serialize must decode into this package's
// public structs field for field.
func TestWireCompatibleWithServerModels(t *testing.T) {
	data, err := json.Marshal(model.BayStatus{
		BayID:      "bay-1",
		Status:     model.BayOccupied,
		Progress:   45,
		Vehicle:    "2021 Civic",
		Technician: "Sam",
		UpdatedAt:  1700000000000,
	})
	require.NoError(t, err)

	var bay BayStatus
	require.NoError(t, json.Unmarshal(data, &bay))
	assert.Equal(t, "bay-1", bay.BayID)
	assert.Equal(t, BayOccupied, bay.Status)
	assert.Equal(t, "occupied", bay.Status.Label())
	assert.Equal(t, 45, bay.Progress)

	data, err = json.Marshal(model.QueueEntry{
		AppointmentID: "a1",
		Status:        "waiting",
		Position:      3,
		EstimatedWait: 900,
	})
	require.NoError(t, err)

	var entry QueueEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "a1", entry.AppointmentID)
	assert.Equal(t, "waiting", entry.Status)
	assert.Equal(t, 3, entry.Position)
}

func newSnapshotServer(t *testing.T, failing *atomic.Bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/service-bays", func(w http.ResponseWriter, r *http.Request) {
		if failing != nil && failing.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"bays": []BayStatus{{BayID: "bay-1", Status: BayOccupied}},
		})
	})
	mux.HandleFunc("/service-bays/queue", func(w http.ResponseWriter, r *http.Request) {
		if failing != nil && failing.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"queue": []QueueEntry{{AppointmentID: "a1", Status: "waiting", Position: 1}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientStartsLiveAndWritable(t *testing.T) {
	c := NewClient("http://unused.invalid")
	defer c.Close()

	assert.Equal(t, ModeLive, c.Mode())
	assert.NoError(t, c.Writable())
}

func TestClientDemotesToPollingAfterThreshold(t *testing.T) {
	srv := newSnapshotServer(t, nil)

	var mu sync.Mutex
	var transitions [][2]Mode
	c := NewClient(srv.URL,
		WithFailureThreshold(3),
		WithPollInterval(20*time.Millisecond),
		WithModeChange(func(from, to Mode) {
			mu.Lock()
			transitions = append(transitions, [2]Mode{from, to})
			mu.Unlock()
		}),
	)
	defer c.Close()

	ctx := context.Background()
	c.ReportHeartbeatFailure(ctx)
	c.ReportHeartbeatFailure(ctx)
	assert.Equal(t, ModeLive, c.Mode(), "below threshold stays live")

	c.ReportHeartbeatFailure(ctx)
	require.Equal(t, ModePolling, c.Mode())

	// Polling refetches wholesale server state.
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.Source == "server" && len(snap.Bays) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	require.NotEmpty(t, transitions)
	assert.Equal(t, [2]Mode{ModeLive, ModePolling}, transitions[0])
	mu.Unlock()
}

func TestClientReturnsToLiveOnHeartbeatSuccess(t *testing.T) {
	srv := newSnapshotServer(t, nil)
	c := NewClient(srv.URL, WithFailureThreshold(1), WithPollInterval(20*time.Millisecond))
	defer c.Close()

	c.ReportHeartbeatFailure(context.Background())
	require.Equal(t, ModePolling, c.Mode())

	c.ReportHeartbeatSuccess()
	assert.Equal(t, ModeLive, c.Mode())
	assert.NoError(t, c.Writable())
}

func TestClientFallsBackToMockWhenPollingFails(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	srv := newSnapshotServer(t, &failing)

	c := NewClient(srv.URL, WithFailureThreshold(1), WithPollInterval(10*time.Millisecond))
	defer c.Close()

	ctx := context.Background()

	// Three consecutive refetch failures open the breaker.
	for i := 0; i < 3; i++ {
		_, err := c.Refresh(ctx)
		require.Error(t, err)
	}

	require.Eventually(t, func() bool {
		return c.Mode() == ModeOffline
	}, time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, "mock", snap.Source)
	assert.NotEmpty(t, snap.Bays, "mock dataset is fixed, never empty")

	// Offline mode is strictly read-only.
	assert.ErrorIs(t, c.Writable(), ErrOfflineReadOnly)
}

func TestClientRefreshFetchesBothViews(t *testing.T) {
	srv := newSnapshotServer(t, nil)
	c := NewClient(srv.URL)
	defer c.Close()

	snap, err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "server", snap.Source)
	require.Len(t, snap.Bays, 1)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "bay-1", snap.Bays[0].BayID)
	assert.Equal(t, "a1", snap.Queue[0].AppointmentID)
}

func TestModeLabels(t *testing.T) {
	assert.Equal(t, "live", ModeLive.Label())
	assert.Equal(t, "polling", ModePolling.Label())
	assert.Equal(t, "offline-mock", ModeOffline.Label())
}

package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayline/shop-sync-service/internal/config"
	"github.com/bayline/shop-sync-service/internal/domain/event"
)

// captureBroadcaster records published events for assertions.
type captureBroadcaster struct {
	mu     sync.Mutex
	events []event.Eventer
}

func (c *captureBroadcaster) Publish(_ context.Context, ev event.Eventer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureBroadcaster) kinds() []event.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Kind, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.GetKind()
	}
	return out
}

func newTestPresence(t *testing.T, ttl time.Duration) (*Presence, *captureBroadcaster) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Realtime.TypingTTL = ttl
	bc := &captureBroadcaster{}
	p := NewPresence(cfg, bc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(p.Shutdown)
	return p, bc
}

func TestPresenceBroadcastsStartOncePerEpisode(t *testing.T) {
	p, bc := newTestPresence(t, time.Second)
	ctx := context.Background()

	p.Mark(ctx, "appt-1", "cust-1", "conn-a")
	p.Mark(ctx, "appt-1", "cust-1", "conn-a")
	p.Mark(ctx, "appt-1", "cust-1", "conn-a")

	assert.Equal(t, []event.Kind{event.TypingStarted}, bc.kinds())
}

func TestPresenceExpiresOnDeadline(t *testing.T) {
	p, bc := newTestPresence(t, 40*time.Millisecond)
	ctx := context.Background()

	p.Mark(ctx, "appt-1", "cust-1", "conn-a")

	require.Eventually(t, func() bool {
		kinds := bc.kinds()
		return len(kinds) == 2 && kinds[1] == event.TypingStopped
	}, time.Second, 5*time.Millisecond)

	// A late explicit clear after expiry produces no second stop.
	p.Clear(ctx, "appt-1", "cust-1")
	assert.Len(t, bc.kinds(), 2)
}

func TestPresenceRefreshPostponesDeadline(t *testing.T) {
	p, bc := newTestPresence(t, 60*time.Millisecond)
	ctx := context.Background()

	p.Mark(ctx, "appt-1", "cust-1", "conn-a")
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		p.Mark(ctx, "appt-1", "cust-1", "conn-a")
	}

	// Kept alive past several base TTLs by refreshes.
	assert.Equal(t, []event.Kind{event.TypingStarted}, bc.kinds())

	require.Eventually(t, func() bool {
		return len(bc.kinds()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPresenceExplicitClearStopsOnce(t *testing.T) {
	p, bc := newTestPresence(t, 50*time.Millisecond)
	ctx := context.Background()

	p.Mark(ctx, "appt-1", "cust-1", "conn-a")
	p.Clear(ctx, "appt-1", "cust-1")

	assert.Equal(t, []event.Kind{event.TypingStarted, event.TypingStopped}, bc.kinds())

	// The stopped timer must not fire a second stop later.
	time.Sleep(120 * time.Millisecond)
	assert.Len(t, bc.kinds(), 2)
}

func TestPresenceClearWithoutEpisodeIsNoOp(t *testing.T) {
	p, bc := newTestPresence(t, time.Second)

	p.Clear(context.Background(), "appt-1", "cust-1")

	assert.Empty(t, bc.kinds())
}

func TestPresenceTracksEpisodesIndependently(t *testing.T) {
	p, bc := newTestPresence(t, time.Second)
	ctx := context.Background()

	p.Mark(ctx, "appt-1", "cust-1", "conn-a")
	p.Mark(ctx, "appt-1", "cust-2", "conn-b")
	p.Mark(ctx, "appt-2", "cust-1", "conn-a")

	assert.Len(t, bc.kinds(), 3)

	p.Clear(ctx, "appt-1", "cust-2")
	kinds := bc.kinds()
	require.Len(t, kinds, 4)
	assert.Equal(t, event.TypingStopped, kinds[3])
}

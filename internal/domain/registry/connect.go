package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bayline/shop-sync-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the hub-facing surface of one live client link. Transports
// (websocket, long-poll) pump Recv, the rooms push through Send. Keeping the
// concrete type unexported forces every layer through this interface, which
// is what makes the hub mockable in tests.
type Connector interface {
	GetID() uuid.UUID
	GetPrincipalID() string
	Send(ev event.Eventer, timeout time.Duration) bool // thread-safe, backpressure-aware
	Recv() <-chan event.Eventer
	Done() <-chan struct{}
	DroppedCount() uint64
	Close() // terminate and release resources, idempotent
}

// ConnectMetadata is exported for transport and analytics layers.
type ConnectMetadata struct {
	Platform  string
	Version   string
	RemoteIP  string
	UserAgent string
}

type connect struct {
	id          uuid.UUID
	principalID string
	metadata    ConnectMetadata
	createdAt   time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	sendCh chan event.Eventer

	closeOnce sync.Once

	// atomic counter, lock-free
	droppedCount uint64
}

// connectPool recycles connector shells to reduce GC pressure; reconnecting
// dashboards churn through connections quickly.
var connectPool = sync.Pool{
	New: func() any {
		return &connect{}
	},
}

// NewConnector issues a fresh connection handle with its own id. A reconnect
// always comes back through here, so a brand-new id is guaranteed.
func NewConnector(ctx context.Context, principalID string, bufferSize int) Connector {
	c := connectPool.Get().(*connect)

	childCtx, cancel := context.WithCancel(ctx)

	*c = connect{
		id:          uuid.New(),
		principalID: principalID,
		createdAt:   time.Now(),
		ctx:         childCtx,
		cancelFn:    cancel,
		sendCh:      make(chan event.Eventer, bufferSize),
	}

	return c
}

func (c *connect) GetID() uuid.UUID           { return c.id }
func (c *connect) GetPrincipalID() string     { return c.principalID }
func (c *connect) Done() <-chan struct{}      { return c.ctx.Done() }
func (c *connect) DroppedCount() uint64       { return atomic.LoadUint64(&c.droppedCount) }
func (c *connect) Recv() <-chan event.Eventer { return c.sendCh }

// Send attempts to push an event into the connection buffer, waiting up to
// timeout for space. A room must never be held hostage by a single stalled
// consumer, so a saturated buffer falls through to the shedding logic.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- ev:
		return true
	case <-ctx.Done():
		return c.handleBackpressure(ev, timeout)
	}
}

// handleBackpressure manages full buffers by dropping low-priority events.
func (c *connect) handleBackpressure(ev event.Eventer, timeout time.Duration) bool {
	// Low-priority events (typing indicators) are dropped outright; the
	// polling fallback refetch compensates for anything a slow consumer
	// misses, so there is no point queueing stale presence.
	if ev.GetPriority() <= event.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	// Try to evict one queued lower-priority event to make room.
	select {
	case oldEv := <-c.sendCh:
		if oldEv.GetPriority() < ev.GetPriority() {
			c.sendCh <- ev
			return true
		}
		// The queued event was equal or higher priority, put it back (best effort).
		select {
		case c.sendCh <- oldEv:
		default:
		}
	case <-time.After(timeout):
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

// Close terminates the connection, triggers cleanup, and recycles the object.
// Safe to call concurrently from the hub (shutdown), a room (eviction), and
// the transport handler (defer).
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()

		// Closing the channel signals the transport pump (via !ok) to send a
		// final close frame and exit. The channel stays readable so queued
		// events, including the goodbye, still drain.
		if c.sendCh != nil {
			close(c.sendCh)
		}

		c.metadata = ConnectMetadata{}

		connectPool.Put(c)
	})
}

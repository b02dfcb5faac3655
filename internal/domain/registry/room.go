/*
Package registry provides the in-process fan-out core: every logical channel
(an appointment chat thread, the facility-wide bay or queue view) is an
isolated Room actor owning the set of subscribed connections.

Key architectural points:
  - Per-room mailboxes: publish order is preserved per room because a single
    goroutine drains each mailbox. FIFO delivery needs no locking and no
    sequence numbers inside one room; there is deliberately no ordering
    guarantee across rooms.
  - Decoupling and backpressure: a slow subscriber saturates only its own
    connection buffer, never the room loop or the publisher.
  - Lock-free lookups via sync.Map on the hot publish path, with fine-grained
    locking inside individual rooms.
*/
package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bayline/shop-sync-service/internal/domain/event"
)

// Roomer defines the internal API for per-channel delivery units.
type Roomer interface {
	Push(ev event.Eventer) bool
	Attach(conn Connector)
	Detach(connID uuid.UUID) bool
	Members() int
	Depth() int
	IsIdle(timeout time.Duration) bool
	Stop()
}

// Room implements isolated delivery for a single logical channel.
type Room struct {
	key string

	// mailbox decouples publishers from delivery. Draining it from exactly
	// one goroutine is what gives the per-room FIFO guarantee.
	mailbox chan event.Eventer

	// members holds every connection currently subscribed to this room.
	members map[uuid.UUID]Connector

	mu sync.RWMutex

	logger *slog.Logger

	// deliveryTimeout bounds how long one member may stall the fan-out.
	deliveryTimeout time.Duration

	doneCh   chan struct{}
	stopOnce sync.Once

	lastActivityAt time.Time
	dropped        uint64 // atomic
}

func NewRoom(key string, mailboxSize int, deliveryTimeout time.Duration, logger *slog.Logger) *Room {
	r := &Room{
		key:             key,
		mailbox:         make(chan event.Eventer, mailboxSize),
		members:         make(map[uuid.UUID]Connector),
		logger:          logger,
		deliveryTimeout: deliveryTimeout,
		doneCh:          make(chan struct{}),
		lastActivityAt:  time.Now(),
	}
	go r.loop()
	return r
}

// IsIdle reports whether the room has no members and no recent traffic.
func (r *Room) IsIdle(timeout time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members) == 0 && time.Since(r.lastActivityAt) > timeout
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActivityAt = time.Now()
	r.mu.Unlock()
}

// Push enqueues an event for delivery. Returns false when the mailbox is
// saturated; the caller counts the drop and moves on, the polling fallback
// is the compensating mechanism for anything missed.
func (r *Room) Push(ev event.Eventer) bool {
	r.touch()
	select {
	case r.mailbox <- ev:
		return true
	default:
		atomic.AddUint64(&r.dropped, 1)
		return false
	}
}

// Attach subscribes a connection. Re-attaching the same connection is a
// no-op, which makes join idempotent end to end.
func (r *Room) Attach(conn Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivityAt = time.Now()
	r.members[conn.GetID()] = conn
}

// Detach removes a connection and reports whether the room is now empty.
// Removing an absent connection is a no-op returning the current emptiness.
func (r *Room) Detach(connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, connID)
	r.lastActivityAt = time.Now()
	return len(r.members) == 0
}

func (r *Room) Members() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) Depth() int { return len(r.mailbox) }

func (r *Room) loop() {
	for {
		select {
		case <-r.doneCh:
			return
		case ev := <-r.mailbox:
			r.deliver(ev)
		}
	}
}

// deliver fans one event out to every current member except the origin.
// Locally produced events name the origin connection; events that entered
// through the bus only know the sending principal, so suppression matches on
// either. A failed send to one member never interrupts the others.
func (r *Room) deliver(ev event.Eventer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.members) == 0 {
		return
	}

	originConn := ev.GetOriginConnID()
	originPrincipal := ev.GetOriginPrincipal()
	for id, conn := range r.members {
		if originConn != "" && id.String() == originConn {
			// The producer already has local confirmation; no echo.
			continue
		}
		if originPrincipal != "" && conn.GetPrincipalID() == originPrincipal {
			continue
		}
		if !conn.Send(ev, r.deliveryTimeout) {
			atomic.AddUint64(&r.dropped, 1)
			r.logger.Warn("room delivery failed",
				"room", r.key,
				"conn_id", id,
				"event", ev.GetKind().Wire(),
			)
		}
	}
}

func (r *Room) DroppedCount() uint64 { return atomic.LoadUint64(&r.dropped) }

func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.doneCh) })
}

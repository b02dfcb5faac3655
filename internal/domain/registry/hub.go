package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

// Hubber is the gateway for room membership and event routing. It is the one
// fan-out point every state mutation passes through; external callers only
// ever publish, they never touch room state directly.
type Hubber interface {
	Publish(ev event.Eventer) bool
	Join(roomKey string, conn Connector)
	Leave(roomKey string, connID uuid.UUID)
	Members(roomKey string) int
	Stats() model.HubStats
	Shutdown()
}

type hubConfig struct {
	mailboxSize      int
	deliveryTimeout  time.Duration
	evictionInterval time.Duration
	idleTimeout      time.Duration
}

// Hub maps room keys to live Room actors. Rooms are created lazily on the
// first join and reclaimed when the last member leaves.
type Hub struct {
	// rooms stores map[string]Roomer. Optimized for read-heavy workloads.
	rooms sync.Map

	config hubConfig
	logger *slog.Logger

	startedAt time.Time
	doneCh    chan struct{}
	stopOnce  sync.Once
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			mailboxSize:      1024,
			deliveryTimeout:  500 * time.Millisecond,
			evictionInterval: 15 * time.Minute,
			idleTimeout:      30 * time.Minute,
		},
		logger:    logger,
		startedAt: time.Now(),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.janitor()
	return h
}

// Publish routes an event to its room. Returns false when the room has no
// subscribers; that is a normal no-op, not an error.
func (h *Hub) Publish(ev event.Eventer) bool {
	if val, ok := h.rooms.Load(ev.GetRoomKey()); ok {
		if room, ok := val.(Roomer); ok {
			return room.Push(ev)
		}
	}
	return false
}

// Join ensures the room exists and attaches the connection. Joining a room
// the connection is already a member of has no additional effect.
func (h *Hub) Join(roomKey string, conn Connector) {
	val, ok := h.rooms.Load(roomKey)
	if !ok {
		// Lazy room creation. Losing the LoadOrStore race means another
		// join built the room first; stop ours before it is observable.
		room := NewRoom(roomKey, h.config.mailboxSize, h.config.deliveryTimeout, h.logger)
		actual, raced := h.rooms.LoadOrStore(roomKey, Roomer(room))
		if raced {
			room.Stop()
		}
		val = actual
	}
	if room, ok := val.(Roomer); ok && room != nil {
		room.Attach(conn)
	}
}

// Leave detaches the connection; the last member leaving reclaims the room.
func (h *Hub) Leave(roomKey string, connID uuid.UUID) {
	if val, ok := h.rooms.Load(roomKey); ok {
		if room, ok := val.(Roomer); ok && room != nil {
			if room.Detach(connID) {
				room.Stop()
				h.rooms.Delete(roomKey)
			}
		}
	}
}

func (h *Hub) Members(roomKey string) int {
	if val, ok := h.rooms.Load(roomKey); ok {
		if room, ok := val.(Roomer); ok && room != nil {
			return room.Members()
		}
	}
	return 0
}

// Stats snapshots the hub for the /stats endpoint and the monitor TUI.
func (h *Hub) Stats() model.HubStats {
	stats := model.HubStats{Uptime: time.Since(h.startedAt)}
	h.rooms.Range(func(key, val any) bool {
		room, ok := val.(*Room)
		if !ok {
			return true
		}
		members := room.Members()
		stats.TotalRooms++
		stats.TotalConnections += members
		stats.DroppedEvents += room.DroppedCount()
		stats.Rooms = append(stats.Rooms, model.RoomStats{
			RoomKey:     key.(string),
			Members:     members,
			QueuedDepth: room.Depth(),
		})
		return true
	})
	return stats
}

// janitor reclaims rooms that ended up empty without a clean leave, e.g.
// after heartbeat-timeout teardown of many connections at once.
func (h *Hub) janitor() {
	ticker := time.NewTicker(h.config.evictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.doneCh:
			return
		case <-ticker.C:
			h.rooms.Range(func(key, val any) bool {
				if room, ok := val.(Roomer); ok && room != nil && room.IsIdle(h.config.idleTimeout) {
					room.Stop()
					h.rooms.Delete(key)
					h.logger.Debug("idle room evicted", "room", key)
				}
				return true
			})
		}
	}
}

// Shutdown stops every room loop and the janitor.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.doneCh) })
	h.rooms.Range(func(key, val any) bool {
		if room, ok := val.(Roomer); ok && room != nil {
			room.Stop()
		}
		h.rooms.Delete(key)
		return true
	})
}

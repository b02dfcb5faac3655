package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bayline/shop-sync-service/internal/adapter/pubsub"
	"github.com/bayline/shop-sync-service/internal/config"
	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

type episodeKey struct {
	roomKey     string
	principalID string
}

type episode struct {
	timer    *time.Timer
	originID string
}

// Presence tracks per-room typing state with authoritative deadline expiry.
// The origin client never needs to send an explicit stop for correctness: if
// no refresh arrives within the TTL the tracker clears the state itself and
// broadcasts the stop.
type Presence struct {
	mu       sync.Mutex
	episodes map[episodeKey]*episode

	ttl         time.Duration
	broadcaster Broadcaster
	logger      *slog.Logger

	sealed bool
}

func NewPresence(cfg *config.Config, broadcaster Broadcaster, logger *slog.Logger) *Presence {
	return &Presence{
		episodes:    make(map[episodeKey]*episode),
		ttl:         cfg.Realtime.TypingTTL,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Mark sets or refreshes the typing deadline for (room, principal). Only the
// first call of an episode broadcasts a start; refreshes are silent to bound
// broadcast volume while someone keeps typing.
func (p *Presence) Mark(ctx context.Context, roomKey, principalID, originConnID string) {
	key := episodeKey{roomKey: roomKey, principalID: principalID}

	p.mu.Lock()
	if p.sealed {
		p.mu.Unlock()
		return
	}
	if ep, ok := p.episodes[key]; ok {
		ep.timer.Reset(p.ttl)
		p.mu.Unlock()
		return
	}
	ep := &episode{originID: originConnID}
	ep.timer = time.AfterFunc(p.ttl, func() { p.expire(key) })
	p.episodes[key] = ep
	p.mu.Unlock()

	// Typing episodes originate here rather than on the bus, so they carry a
	// fan-out routing key for members subscribed on other instances.
	p.broadcaster.Publish(ctx, event.New(roomKey, event.TypingStarted,
		&model.TypingPayload{RoomKey: roomKey, PrincipalID: principalID},
		event.WithOrigin(originConnID),
		event.WithPriority(event.PriorityLow),
		event.WithRoutingKey(pubsub.SyncTopic(event.TypingStarted)),
	))
}

// Clear ends the episode explicitly. Exactly one stop is broadcast per
// episode whether the end came from here or from deadline expiry.
func (p *Presence) Clear(ctx context.Context, roomKey, principalID string) {
	key := episodeKey{roomKey: roomKey, principalID: principalID}

	p.mu.Lock()
	ep, ok := p.episodes[key]
	if ok {
		ep.timer.Stop()
		delete(p.episodes, key)
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	p.publishStop(ctx, key, ep)
}

// expire is the deadline path: the scheduled check fires, the state is
// cleared authoritatively, and the stop goes out even if the origin client
// is long gone.
func (p *Presence) expire(key episodeKey) {
	p.mu.Lock()
	ep, ok := p.episodes[key]
	if ok {
		delete(p.episodes, key)
	}
	sealed := p.sealed
	p.mu.Unlock()

	if !ok || sealed {
		return
	}
	p.logger.Debug("typing expired", "room", key.roomKey, "principal", key.principalID)
	p.publishStop(context.Background(), key, ep)
}

func (p *Presence) publishStop(ctx context.Context, key episodeKey, ep *episode) {
	p.broadcaster.Publish(ctx, event.New(key.roomKey, event.TypingStopped,
		&model.TypingPayload{RoomKey: key.roomKey, PrincipalID: key.principalID},
		event.WithOrigin(ep.originID),
		event.WithPriority(event.PriorityLow),
		event.WithRoutingKey(pubsub.SyncTopic(event.TypingStopped)),
	))
}

// Shutdown stops all timers; no further broadcasts are produced.
func (p *Presence) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sealed = true
	for key, ep := range p.episodes {
		ep.timer.Stop()
		delete(p.episodes, key)
	}
}

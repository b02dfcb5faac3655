package event

import (
	"time"

	"github.com/google/uuid"
)

var (
	_ Eventer    = (*StateEvent)(nil)
	_ Exportable = (*StateEvent)(nil)
)

// StateEvent is the immutable record of one business-state transition. It is
// produced exactly once by the owning business operation and then consumed by
// the broadcaster and the notification dispatcher; nothing mutates it after
// creation except the transport-form cache.
type StateEvent struct {
	id              string
	roomKey         string
	kind            Kind
	originConnID    string
	originPrincipal string
	priority        Priority
	version         uint64
	occurredAt      int64
	routingKey      string
	payload         any
	cached          any // marshalled wire form, computed once per event
}

// Option configures optional StateEvent attributes at construction time.
type Option func(*StateEvent)

// WithOrigin marks the connection that produced the event. The broadcaster
// skips that connection during fan-out: the origin already has local
// confirmation and must not receive an echo.
func WithOrigin(connID string) Option {
	return func(e *StateEvent) { e.originConnID = connID }
}

// WithOriginPrincipal marks the principal that produced the event. Events
// entering through the bus carry no connection id, so suppression falls back
// to the principal: none of the sender's connections receives an echo.
func WithOriginPrincipal(principalID string) Option {
	return func(e *StateEvent) { e.originPrincipal = principalID }
}

// WithPriority overrides the default normal priority.
func WithPriority(p Priority) Option {
	return func(e *StateEvent) { e.priority = p }
}

// WithVersion attaches the publisher's monotonic version counter.
func WithVersion(v uint64) Option {
	return func(e *StateEvent) { e.version = v }
}

// WithRoutingKey marks the event for re-publication on the shared bus under
// the given topic, so instances other than this one can fan it out as well.
func WithRoutingKey(topic string) Option {
	return func(e *StateEvent) { e.routingKey = topic }
}

// New creates a StateEvent bound to a room.
func New(roomKey string, kind Kind, payload any, opts ...Option) *StateEvent {
	e := &StateEvent{
		id:         uuid.NewString(),
		roomKey:    roomKey,
		kind:       kind,
		priority:   PriorityNormal,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore rebuilds an event that was produced elsewhere and arrived over the
// bus. The original id and timestamp are preserved so clients can dedupe
// across transports; the routing key is deliberately left empty, which keeps
// a restored event from being exported again.
func Restore(id, roomKey string, kind Kind, occurredAt int64, payload any, opts ...Option) *StateEvent {
	e := &StateEvent{
		id:         id,
		roomKey:    roomKey,
		kind:       kind,
		priority:   PriorityNormal,
		occurredAt: occurredAt,
		payload:    payload,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *StateEvent) GetID() string              { return e.id }
func (e *StateEvent) GetKind() Kind              { return e.kind }
func (e *StateEvent) GetRoomKey() string         { return e.roomKey }
func (e *StateEvent) GetOriginConnID() string    { return e.originConnID }
func (e *StateEvent) GetOriginPrincipal() string { return e.originPrincipal }
func (e *StateEvent) GetPriority() Priority      { return e.priority }
func (e *StateEvent) GetVersion() uint64         { return e.version }
func (e *StateEvent) GetOccurredAt() int64       { return e.occurredAt }
func (e *StateEvent) GetPayload() any            { return e.payload }
func (e *StateEvent) GetCached() any             { return e.cached }
func (e *StateEvent) SetCached(v any)            { e.cached = v }

// GetRoutingKey implements Exportable. Empty means local-only delivery.
func (e *StateEvent) GetRoutingKey() string { return e.routingKey }

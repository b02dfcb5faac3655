package event

// Kind enumerates every state transition the service knows how to deliver.
// The set is closed on purpose: the wire marshaller and the notification
// templates switch over it exhaustively, so a new kind is a compile-time
// checked addition rather than a stringly-typed convention.
type Kind int16

//go:generate stringer -type=Kind
const (
	ConnectionReady  Kind = iota + 1 // [SYSTEM]
	ConnectionClosed                 // [SYSTEM]
	MessageCreated                   // [BUSINESS]
	BayStatusChanged
	QueueStatusChanged
	TypingStarted
	TypingStopped
	AppointmentConfirmed
	PickupReady
	LowStockAlert
	ServiceRecommended
)

// Wire returns the event name used on the websocket and long-poll wire.
func (k Kind) Wire() string {
	switch k {
	case ConnectionReady:
		return "connection_ready"
	case ConnectionClosed:
		return "connection_closed"
	case MessageCreated:
		return "message_created"
	case BayStatusChanged:
		return "bay_status_changed"
	case QueueStatusChanged:
		return "queue_status_changed"
	case TypingStarted:
		return "typing_start"
	case TypingStopped:
		return "typing_stop"
	case AppointmentConfirmed:
		return "appointment_confirmed"
	case PickupReady:
		return "pickup_ready"
	case LowStockAlert:
		return "low_stock_alert"
	case ServiceRecommended:
		return "service_recommended"
	}
	return "unknown"
}

// KindFromWire resolves a wire name back to its Kind. Used when events come
// in from the shared bus rather than from local business operations.
func KindFromWire(name string) (Kind, bool) {
	for k := ConnectionReady; k <= ServiceRecommended; k++ {
		if k.Wire() == name {
			return k, true
		}
	}
	return 0, false
}

type Priority int32

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
)

// Eventer defines the contract for all data packets flowing through the Hub.
type Eventer interface {
	GetID() string
	GetKind() Kind
	GetRoomKey() string
	GetOriginConnID() string
	GetOriginPrincipal() string
	GetPriority() Priority
	GetVersion() uint64
	GetOccurredAt() int64
	GetPayload() any
	GetCached() any
	SetCached(any)
}

// Exportable defines an event that should be re-published to the message bus
// so subscribers connected to other instances receive it too.
type Exportable interface {
	// GetRoutingKey returns the bus topic for the event. An empty string
	// tells the publisher to skip the export.
	GetRoutingKey() string
}

package registry

import "time"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the buffer capacity for each room's mailbox. This is
// the backpressure threshold for publishers.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		h.config.mailboxSize = size
	}
}

// WithDeliveryTimeout bounds how long a room waits on one member's buffer
// before shedding.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.config.deliveryTimeout = d
	}
}

// WithEvictionInterval configures how often the janitor runs to reclaim
// memory from abandoned rooms.
func WithEvictionInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.config.evictionInterval = d
	}
}

// WithIdleTimeout defines the quiet period after which a memberless room is
// eligible for eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.config.idleTimeout = d
	}
}

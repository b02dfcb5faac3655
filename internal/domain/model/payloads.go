package model

// TypingPayload announces that a principal started or stopped composing in a
// room. The stop side is authoritative on the server: it fires on deadline
// expiry even if the origin client never sends an explicit stop.
type TypingPayload struct {
	RoomKey     string `json:"room_key"`
	PrincipalID string `json:"principal_id"`
}

// ReadyPayload is sent to the client once the handshake completed and every
// room from the client-declared rejoin list has been joined. Until this frame
// arrives the client must not assume any subscription exists. The advertised
// heartbeat interval is the cadence the server expects; missing it long
// enough walks the connection through stale into closed.
type ReadyPayload struct {
	ConnectionID        string   `json:"connection_id"`
	RejoinedRooms       []string `json:"rejoined_rooms"`
	ServerVersion       string   `json:"server_version"`
	HeartbeatIntervalMS int64    `json:"heartbeat_interval_ms"`
}

// GoodbyePayload is the last frame before the server closes the stream.
type GoodbyePayload struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"` // "SHUTDOWN", "EVICTED", "TIMEOUT"
}

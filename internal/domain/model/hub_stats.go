package model

import "time"

type HubStats struct {
	TotalRooms       int           `json:"total_rooms"`
	TotalConnections int           `json:"total_connections"`
	DroppedEvents    uint64        `json:"dropped_events"`
	Uptime           time.Duration `json:"uptime"`
	Rooms            []RoomStats   `json:"rooms,omitempty"`
}

type RoomStats struct {
	RoomKey     string `json:"room_key"`
	Members     int    `json:"members"`
	QueuedDepth int    `json:"queued_depth"`
}

package model

import "github.com/google/uuid"

//go:generate stringer -type=SenderRole
type SenderRole int16

const (
	// Values start at 1 so the zero value never passes for a valid role.
	RoleCustomer SenderRole = iota + 1
	RoleStaff
	RoleSystem
)

// ChatMessage is the core entity of an appointment chat thread.
type ChatMessage struct {
	ID            uuid.UUID
	AppointmentID string
	SenderID      string
	SenderName    string
	Role          SenderRole
	Text          string
	CreatedAt     int64
}

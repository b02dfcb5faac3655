package model

import "fmt"

// Facility-wide broadcast channels. Unlike appointment rooms these exist for
// the lifetime of the process and every dashboard client joins them.
const (
	RoomBays  = "bays"
	RoomQueue = "queue"
)

// AppointmentRoom builds the room key for a single appointment's chat thread.
func AppointmentRoom(appointmentID string) string {
	return fmt.Sprintf("appt-%s", appointmentID)
}

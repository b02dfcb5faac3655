package fallback

// Wire-compatible mirrors of the views served by the snapshot endpoints.
// This package is imported by external dashboard builds, so its API cannot
// lean on the service's internal packages.

//go:generate stringer -type=BayState
type BayState int16

const (
	BayAvailable BayState = iota + 1
	BayOccupied
	BayMaintenance
)

// Label returns the string form of the bay state.
func (s BayState) Label() string {
	switch s {
	case BayAvailable:
		return "available"
	case BayOccupied:
		return "occupied"
	case BayMaintenance:
		return "maintenance"
	}
	return "unknown"
}

// BayStatus is one service bay as shown on dashboards.
type BayStatus struct {
	BayID         string
	Status        BayState
	Progress      int // 0..100, meaningful only while occupied
	AppointmentID string
	Vehicle       string
	Technician    string
	UpdatedAt     int64
}

// QueueEntry is one appointment's position in the service queue.
type QueueEntry struct {
	AppointmentID string
	Status        string // "waiting", "in_service", "ready"
	Position      int
	EstimatedWait int64 // seconds
	UpdatedAt     int64
}

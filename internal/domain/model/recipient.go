package model

// Recipient carries the offline contact surface of a principal. Either field
// may be empty; a channel sender treats a missing address the same way it
// treats missing provider credentials, as "not attempted".
type Recipient struct {
	PrincipalID string
	Name        string
	Phone       string
	Email       string
}

// StockItem is the subject of a low-stock alert.
type StockItem struct {
	SKU      string
	Name     string
	Quantity int
	Minimum  int
}

// Recommendation is a suggested follow-up service for a vehicle.
type Recommendation struct {
	AppointmentID string
	Vehicle       string
	Service       string
	Notes         string
}

// AppointmentNotice is the payload for confirmation and pickup events that
// reach customers through offline channels.
type AppointmentNotice struct {
	AppointmentID string
	Vehicle       string
	ScheduledAt   int64
	Status        string
}

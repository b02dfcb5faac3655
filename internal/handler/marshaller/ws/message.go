package wsmarshaller

import (
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

type WSMessage struct {
	ID            string `json:"id"`
	AppointmentID string `json:"appointment_id"`
	SenderID      string `json:"sender_id"`
	SenderName    string `json:"sender_name,omitempty"`
	Role          string `json:"role"`
	Text          string `json:"text"`
	CreatedAt     int64  `json:"created_at"`
}

func mapMessage(m *model.ChatMessage) *WSMessage {
	role := "customer"
	switch m.Role {
	case model.RoleStaff:
		role = "staff"
	case model.RoleSystem:
		role = "system"
	}
	return &WSMessage{
		ID:            m.ID.String(),
		AppointmentID: m.AppointmentID,
		SenderID:      m.SenderID,
		SenderName:    m.SenderName,
		Role:          role,
		Text:          m.Text,
		CreatedAt:     m.CreatedAt,
	}
}

type WSBayStatus struct {
	BayID         string `json:"bay_id"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	AppointmentID string `json:"appointment_id,omitempty"`
	Vehicle       string `json:"vehicle,omitempty"`
	Technician    string `json:"technician,omitempty"`
	UpdatedAt     int64  `json:"updated_at"`
}

func mapBay(b *model.BayStatus) *WSBayStatus {
	return &WSBayStatus{
		BayID:         b.BayID,
		Status:        b.Status.Label(),
		Progress:      b.Progress,
		AppointmentID: b.AppointmentID,
		Vehicle:       b.Vehicle,
		Technician:    b.Technician,
		UpdatedAt:     b.UpdatedAt,
	}
}

type WSQueueEntry struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	Position      int    `json:"position"`
	EstimatedWait int64  `json:"estimated_wait"`
	UpdatedAt     int64  `json:"updated_at"`
}

func mapQueue(q *model.QueueEntry) *WSQueueEntry {
	return &WSQueueEntry{
		AppointmentID: q.AppointmentID,
		Status:        q.Status,
		Position:      q.Position,
		EstimatedWait: q.EstimatedWait,
		UpdatedAt:     q.UpdatedAt,
	}
}

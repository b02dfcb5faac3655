// Package state keeps the latest full-state view served by the snapshot
// endpoints. It is not persistence: the store holds exactly what a polling
// client needs to rebuild its view wholesale, and nothing older.
package state

import (
	"sort"
	"sync"

	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

const defaultChatTail = 100

// Store applies every published StateEvent to an in-memory snapshot. The
// broadcaster is its only writer; REST handlers are its readers.
type Store struct {
	mu       sync.RWMutex
	bays     map[string]model.BayStatus
	queue    map[string]model.QueueEntry
	chats    map[string][]model.ChatMessage
	chatTail int
}

func NewStore() *Store {
	return &Store{
		bays:     make(map[string]model.BayStatus),
		queue:    make(map[string]model.QueueEntry),
		chats:    make(map[string][]model.ChatMessage),
		chatTail: defaultChatTail,
	}
}

// Apply folds one event into the snapshot. Presence and system events carry
// no durable state and fall through.
func (s *Store) Apply(ev event.Eventer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p := ev.GetPayload().(type) {
	case *model.BayStatus:
		s.bays[p.BayID] = *p
	case *model.QueueEntry:
		if p.Status == "ready" {
			// Ready entries leave the queue view; pickup is the end state.
			delete(s.queue, p.AppointmentID)
			return
		}
		s.queue[p.AppointmentID] = *p
	case *model.ChatMessage:
		tail := append(s.chats[p.AppointmentID], *p)
		if len(tail) > s.chatTail {
			tail = tail[len(tail)-s.chatTail:]
		}
		s.chats[p.AppointmentID] = tail
	}
}

// Bays returns the current bay board ordered by bay id.
func (s *Store) Bays() []model.BayStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.BayStatus, 0, len(s.bays))
	for _, b := range s.bays {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BayID < out[j].BayID })
	return out
}

// Queue returns the current service queue ordered by position.
func (s *Store) Queue() []model.QueueEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.QueueEntry, 0, len(s.queue))
	for _, q := range s.queue {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ChatTail returns the recent messages of one appointment thread, oldest
// first. Safe to call for unknown appointments.
func (s *Store) ChatTail(appointmentID string) []model.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tail := s.chats[appointmentID]
	out := make([]model.ChatMessage, len(tail))
	copy(out, tail)
	return out
}

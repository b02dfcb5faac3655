package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bayline/shop-sync-service/internal/domain/registry"
	"github.com/bayline/shop-sync-service/internal/state"
)

// SnapshotHandler serves the wholesale state views that polling clients
// refetch. Every endpoint returns the complete current view; clients replace
// their local copy rather than merging diffs.
type SnapshotHandler struct {
	store  *state.Store
	hub    registry.Hubber
	logger *slog.Logger
}

func NewSnapshotHandler(store *state.Store, hub registry.Hubber, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		store:  store,
		hub:    hub,
		logger: logger,
	}
}

func (h *SnapshotHandler) Bays(w http.ResponseWriter, r *http.Request) {
	h.respond(w, map[string]any{
		"bays":       h.store.Bays(),
		"fetched_at": time.Now().UnixMilli(),
	})
}

func (h *SnapshotHandler) Queue(w http.ResponseWriter, r *http.Request) {
	h.respond(w, map[string]any{
		"queue":      h.store.Queue(),
		"fetched_at": time.Now().UnixMilli(),
	})
}

func (h *SnapshotHandler) ChatTail(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appointmentID")
	if appointmentID == "" {
		http.Error(w, "missing appointment id", http.StatusBadRequest)
		return
	}
	h.respond(w, map[string]any{
		"appointment_id": appointmentID,
		"messages":       h.store.ChatTail(appointmentID),
		"fetched_at":     time.Now().UnixMilli(),
	})
}

func (h *SnapshotHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.hub.Stats())
}

func (h *SnapshotHandler) respond(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("snapshot encode failed", "error", err)
	}
}

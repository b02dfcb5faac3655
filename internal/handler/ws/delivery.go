package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	wsmarshaller "github.com/bayline/shop-sync-service/internal/handler/marshaller/ws"
	"github.com/bayline/shop-sync-service/internal/service"
)

// inboundFrame is the client-to-server vocabulary. Everything else the
// client sees (messages, statuses) originates on the backend and flows the
// other way.
type inboundFrame struct {
	Action string `json:"action"` // join_room, leave_room, typing_start, typing_stop, heartbeat
	Room   string `json:"room,omitempty"`
}

type WSHandler struct {
	logger   *slog.Logger
	manager  service.Manager
	presence *service.Presence
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, manager service.Manager, presence *service.Presence) *WSHandler {
	return &WSHandler{
		logger:   logger,
		manager:  manager,
		presence: presence,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	// The client declares the rooms it wants restored before any frame is
	// exchanged; they are resubscribed as part of the handshake.
	var rejoin []string
	if raw := r.URL.Query().Get("rooms"); raw != "" {
		rejoin = strings.Split(raw, ",")
	}

	conn, err := h.manager.Connect(r.Context(), token, rejoin)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.logger.Error("ws connect failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Capture identity and the receive channel once: after Disconnect the
	// connector shell is recycled and must not be touched again.
	connID := conn.GetID()
	principalID := conn.GetPrincipalID()
	recv := conn.Recv()

	defer h.manager.Disconnect(connID, "CLIENT_GONE")

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	h.logger.Info("ws opened", "conn_id", connID, "principal", principalID)

	go h.readPump(r.Context(), ws, connID, principalID)

	// MAIN WS PUMP LOOP
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-recv:
			if !ok {
				// Manager closed the connector; the goodbye frame (if any)
				// was already drained above.
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			data, err := wsmarshaller.MarshallDeliveryEvent(ev)
			if err != nil {
				h.logger.Error("failed to marshal ws event", "error", err)
				continue
			}

			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("ws send failed", "error", err)
				return
			}
		}
	}
}

// readPump consumes client frames until the socket drops. A read error means
// the transport is gone, which tears the whole connection down so the write
// pump exits via the closed Recv channel.
func (h *WSHandler) readPump(ctx context.Context, ws *websocket.Conn, connID uuid.UUID, principalID string) {
	defer h.manager.Disconnect(connID, "CLIENT_GONE")

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("ws read failed", "conn_id", connID, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.logger.Debug("ws bad frame", "conn_id", connID, "error", err)
			continue
		}

		h.dispatch(ctx, connID, principalID, frame)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, connID uuid.UUID, principalID string, frame inboundFrame) {
	switch frame.Action {
	case "heartbeat":
		h.manager.Heartbeat(connID)
	case "join_room":
		if frame.Room == "" {
			return
		}
		if err := h.manager.Join(connID, frame.Room); err != nil {
			h.logger.Debug("ws join failed", "conn_id", connID, "room", frame.Room, "error", err)
		}
	case "leave_room":
		if frame.Room == "" {
			return
		}
		if err := h.manager.Leave(connID, frame.Room); err != nil {
			h.logger.Debug("ws leave failed", "conn_id", connID, "room", frame.Room, "error", err)
		}
	case "typing_start":
		if frame.Room == "" {
			return
		}
		h.presence.Mark(ctx, frame.Room, principalID, connID.String())
	case "typing_stop":
		if frame.Room == "" {
			return
		}
		h.presence.Clear(ctx, frame.Room, principalID)
	default:
		h.logger.Debug("ws unknown action", "conn_id", connID, "action", frame.Action)
	}
}

// bearerToken pulls the credential from the Authorization header, falling
// back to the token query parameter for browser clients that cannot set
// headers on websocket upgrades.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return after
		}
		return auth
	}
	return r.URL.Query().Get("token")
}

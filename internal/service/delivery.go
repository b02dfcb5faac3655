package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bayline/shop-sync-service/internal/config"
	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
	"github.com/bayline/shop-sync-service/internal/domain/registry"
)

// ErrUnknownConnection is returned for operations on a connection id the
// manager no longer tracks (closed or never issued).
var ErrUnknownConnection = errors.New("unknown connection")

//go:generate stringer -type=ConnState
type ConnState int16

const (
	StateConnecting ConnState = iota + 1
	StateOpen
	StateStale
	StateClosed
)

// Manager owns the lifecycle of every live client link: handshake,
// room membership, heartbeat liveness, and teardown.
type Manager interface {
	Connect(ctx context.Context, token string, rejoinRooms []string) (registry.Connector, error)
	Join(connID uuid.UUID, roomKey string) error
	Leave(connID uuid.UUID, roomKey string) error
	Heartbeat(connID uuid.UUID) error
	Disconnect(connID uuid.UUID, reason string)
	Rooms(connID uuid.UUID) []string
	State(connID uuid.UUID) ConnState
}

type session struct {
	conn          registry.Connector
	principal     Principal
	rooms         map[string]struct{}
	lastHeartbeat time.Time
	state         ConnState
}

type ConnectionManager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session

	hub      registry.Hubber
	auth     Auther
	presence *Presence
	logger   *slog.Logger

	sendBuffer      int
	heartbeatEvery  time.Duration
	staleAfter      time.Duration
	closeAfter      time.Duration
	deliveryTimeout time.Duration
	serverVersion   string

	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewConnectionManager(cfg *config.Config, hub registry.Hubber, auth Auther, presence *Presence, logger *slog.Logger) *ConnectionManager {
	m := &ConnectionManager{
		sessions:        make(map[uuid.UUID]*session),
		hub:             hub,
		auth:            auth,
		presence:        presence,
		logger:          logger,
		sendBuffer:      cfg.Realtime.SendBuffer,
		heartbeatEvery:  cfg.Realtime.HeartbeatInterval,
		staleAfter:      cfg.Realtime.StaleAfter,
		closeAfter:      cfg.Realtime.CloseAfter,
		deliveryTimeout: cfg.Registry.DeliveryTimeout,
		serverVersion:   cfg.Service.Name,
		doneCh:          make(chan struct{}),
	}
	go m.monitor()
	return m
}

// Connect authenticates the principal and issues a fresh connection. The
// client-declared room list is replayed through Join before the ready frame
// is queued, so there is no window where the client believes it is
// subscribed but isn't. Authentication failure is fail-closed: nothing is
// registered.
func (m *ConnectionManager) Connect(ctx context.Context, token string, rejoinRooms []string) (registry.Connector, error) {
	principal, err := m.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	conn := registry.NewConnector(ctx, principal.ID, m.sendBuffer)

	sess := &session{
		conn:          conn,
		principal:     principal,
		rooms:         make(map[string]struct{}),
		lastHeartbeat: time.Now(),
		state:         StateConnecting,
	}

	m.mu.Lock()
	m.sessions[conn.GetID()] = sess
	rejoined := make([]string, 0, len(rejoinRooms))
	for _, roomKey := range rejoinRooms {
		if roomKey == "" {
			continue
		}
		if _, ok := sess.rooms[roomKey]; ok {
			continue
		}
		sess.rooms[roomKey] = struct{}{}
		m.hub.Join(roomKey, conn)
		rejoined = append(rejoined, roomKey)
	}
	sess.state = StateOpen
	m.mu.Unlock()

	ready := event.New("", event.ConnectionReady, &model.ReadyPayload{
		ConnectionID:        conn.GetID().String(),
		RejoinedRooms:       rejoined,
		ServerVersion:       m.serverVersion,
		HeartbeatIntervalMS: m.heartbeatEvery.Milliseconds(),
	}, event.WithPriority(event.PriorityHigh))
	conn.Send(ready, m.deliveryTimeout)

	m.logger.Info("connection open",
		"conn_id", conn.GetID(),
		"principal", principal.ID,
		"rejoined", len(rejoined),
	)
	return conn, nil
}

// Join is idempotent: adding the same (connection, room) pair twice has no
// additional effect.
func (m *ConnectionManager) Join(connID uuid.UUID, roomKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if _, joined := sess.rooms[roomKey]; joined {
		return nil
	}
	sess.rooms[roomKey] = struct{}{}
	m.hub.Join(roomKey, sess.conn)
	return nil
}

// Leave is idempotent; the last member leaving lets the registry reclaim the
// room.
func (m *ConnectionManager) Leave(connID uuid.UUID, roomKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if _, joined := sess.rooms[roomKey]; !joined {
		return nil
	}
	delete(sess.rooms, roomKey)
	m.hub.Leave(roomKey, connID)
	m.presence.Clear(context.Background(), roomKey, sess.principal.ID)
	return nil
}

// Heartbeat resets the staleness timer. A stale connection that heartbeats
// in time recovers to open; a closed one is gone and must reconnect.
func (m *ConnectionManager) Heartbeat(connID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}
	sess.lastHeartbeat = time.Now()
	if sess.state == StateStale {
		sess.state = StateOpen
	}
	return nil
}

// Disconnect tears the connection down: every subscription and typing entry
// is removed, then the connector is closed and recycled.
func (m *ConnectionManager) Disconnect(connID uuid.UUID, reason string) {
	m.mu.Lock()
	sess, ok := m.sessions[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, connID)
	rooms := make([]string, 0, len(sess.rooms))
	for roomKey := range sess.rooms {
		rooms = append(rooms, roomKey)
		m.hub.Leave(roomKey, connID)
	}
	sess.state = StateClosed
	m.mu.Unlock()

	for _, roomKey := range rooms {
		m.presence.Clear(context.Background(), roomKey, sess.principal.ID)
	}

	goodbye := event.New("", event.ConnectionClosed, &model.GoodbyePayload{
		Reason: reason,
		Code:   reason,
	}, event.WithPriority(event.PriorityHigh))
	sess.conn.Send(goodbye, m.deliveryTimeout)
	sess.conn.Close()

	m.logger.Info("connection closed",
		"conn_id", connID,
		"principal", sess.principal.ID,
		"reason", reason,
	)
}

// Rooms returns the rooms the connection is currently a member of.
func (m *ConnectionManager) Rooms(connID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(sess.rooms))
	for roomKey := range sess.rooms {
		out = append(out, roomKey)
	}
	sort.Strings(out)
	return out
}

func (m *ConnectionManager) State(connID uuid.UUID) ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[connID]; ok {
		return sess.state
	}
	return StateClosed
}

// monitor drives the open → stale → closed ladder off heartbeat age.
func (m *ConnectionManager) monitor() {
	ticker := time.NewTicker(m.staleAfter / 2)
	defer ticker.Stop()
	for {
		select {
		case <-m.doneCh:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *ConnectionManager) sweep() {
	now := time.Now()

	m.mu.Lock()
	var expired []uuid.UUID
	for id, sess := range m.sessions {
		age := now.Sub(sess.lastHeartbeat)
		switch {
		case age > m.closeAfter:
			expired = append(expired, id)
		case age > m.staleAfter && sess.state == StateOpen:
			sess.state = StateStale
			m.logger.Debug("connection stale", "conn_id", id, "age", age)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.Disconnect(id, "TIMEOUT")
	}
}

// Shutdown closes every connection and stops the monitor.
func (m *ConnectionManager) Shutdown() {
	m.stopOnce.Do(func() { close(m.doneCh) })

	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Disconnect(id, "SHUTDOWN")
	}
}

// Package fallback implements the client-side degradation ladder for
// consumers of the sync service (kiosk dashboards, staff terminals). The
// client holds one of three modes:
//
//	live         -- the caller's realtime channel is healthy
//	polling      -- realtime is down; the full state is refetched on a timer
//	offline-mock -- even polling fails; a fixed labeled dataset is served
//
// Transitions are driven by heartbeat outcomes reported by the caller and by
// a circuit breaker around the snapshot refetch.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

// ErrOfflineReadOnly is returned for write attempts while serving mock data.
// A write accepted against a fabricated view would be silently lost or,
// worse, applied against state the user never actually saw.
var ErrOfflineReadOnly = errors.New("fallback: offline mode is read-only")

//go:generate stringer -type=Mode
type Mode int16

const (
	ModeLive Mode = iota + 1
	ModePolling
	ModeOffline
)

func (m Mode) Label() string {
	switch m {
	case ModeLive:
		return "live"
	case ModePolling:
		return "polling"
	case ModeOffline:
		return "offline-mock"
	}
	return "unknown"
}

// Snapshot is one wholesale view of the shop state. Source tells the UI what
// it is rendering: "server" data or the "mock" placeholder.
type Snapshot struct {
	Source    string       `json:"source"`
	FetchedAt time.Time    `json:"fetched_at"`
	Bays      []BayStatus  `json:"bays"`
	Queue     []QueueEntry `json:"queue"`
}

type clientConfig struct {
	pollInterval     time.Duration
	failureThreshold int
	breakerTimeout   time.Duration
	httpClient       *http.Client
	onModeChange     func(from, to Mode)
}

type Option func(*clientConfig)

// WithPollInterval sets the wholesale refetch cadence in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(c *clientConfig) { c.pollInterval = d }
}

// WithFailureThreshold sets how many consecutive heartbeat failures demote
// live to polling.
func WithFailureThreshold(n int) Option {
	return func(c *clientConfig) { c.failureThreshold = n }
}

// WithHTTPClient overrides the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithModeChange registers a transition observer.
func WithModeChange(fn func(from, to Mode)) Option {
	return func(c *clientConfig) { c.onModeChange = fn }
}

// Client tracks the degradation mode and serves the freshest state it can.
type Client struct {
	baseURL string
	config  clientConfig
	breaker *gobreaker.CircuitBreaker

	mu              sync.Mutex
	mode            Mode
	heartbeatMisses int
	latest          Snapshot
	pollCancel      context.CancelFunc
}

func NewClient(baseURL string, opts ...Option) *Client {
	cfg := clientConfig{
		pollInterval:     5 * time.Second,
		failureThreshold: 3,
		breakerTimeout:   30 * time.Second,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Client{
		baseURL: baseURL,
		config:  cfg,
		mode:    ModeLive,
		latest:  mockSnapshot(),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fallback-refetch",
		MaxRequests: 1,
		Timeout:     cfg.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			// Breaker open means even polling cannot reach the server.
			if to == gobreaker.StateOpen {
				c.transition(ModeOffline)
			}
		},
	})

	return c
}

// Mode returns the current degradation mode.
func (c *Client) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Writable gates client-side writes. Callers must check it before issuing
// any mutating request; in offline-mock mode it returns ErrOfflineReadOnly.
func (c *Client) Writable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeOffline {
		return ErrOfflineReadOnly
	}
	return nil
}

// Snapshot returns the freshest state the client holds. In offline-mock mode
// that is the fixed placeholder dataset, labeled as such.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeOffline {
		return mockSnapshot()
	}
	return c.latest
}

// ReportHeartbeatSuccess resets the miss counter. In polling mode a
// heartbeat success means the realtime channel is back; the client returns
// to live and stops polling.
func (c *Client) ReportHeartbeatSuccess() {
	c.mu.Lock()
	c.heartbeatMisses = 0
	back := c.mode != ModeLive
	c.mu.Unlock()

	if back {
		c.transition(ModeLive)
	}
}

// ReportHeartbeatFailure counts one missed heartbeat. Crossing the threshold
// demotes live to polling and starts the refetch loop.
func (c *Client) ReportHeartbeatFailure(ctx context.Context) {
	c.mu.Lock()
	c.heartbeatMisses++
	demote := c.mode == ModeLive && c.heartbeatMisses >= c.config.failureThreshold
	c.mu.Unlock()

	if demote {
		c.transition(ModePolling)
		c.startPolling(ctx)
	}
}

// Refresh performs one wholesale refetch immediately, regardless of mode.
func (c *Client) Refresh(ctx context.Context) (Snapshot, error) {
	return c.refetch(ctx)
}

// Close stops any background polling.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.pollCancel
	c.pollCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Client) transition(to Mode) {
	c.mu.Lock()
	from := c.mode
	if from == to {
		c.mu.Unlock()
		return
	}
	c.mode = to
	if to == ModeLive && c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	onChange := c.config.onModeChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(from, to)
	}
}

func (c *Client) startPolling(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.pollCancel != nil {
		// Already polling.
		c.mu.Unlock()
		cancel()
		return
	}
	c.pollCancel = cancel
	c.mu.Unlock()

	go c.pollLoop(pollCtx)
}

// pollLoop refetches the complete state on a fixed interval. There is no
// diffing and no incremental catch-up: polling clients replace their whole
// view, which makes the loop immune to missed-event bugs.
func (c *Client) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.pollInterval)
	defer ticker.Stop()

	// First fetch immediately; the user just lost their live feed.
	c.refetch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.refetch(ctx); err == nil {
				// A successful refetch while offline proves the server is
				// reachable again; resume polling until the caller reports a
				// live reconnect.
				if c.Mode() == ModeOffline {
					c.transition(ModePolling)
				}
			}
		}
	}
}

func (c *Client) refetch(ctx context.Context) (Snapshot, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.fetchSnapshot(ctx)
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap := res.(Snapshot)

	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()
	return snap, nil
}

// fetchSnapshot pulls the bay board and the queue concurrently; both must
// succeed for the snapshot to count, a half-fetched view is worse than a
// stale one.
func (c *Client) fetchSnapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Source: "server", FetchedAt: time.Now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var body struct {
			Bays []BayStatus `json:"bays"`
		}
		if err := c.getJSON(gctx, "/service-bays", &body); err != nil {
			return err
		}
		snap.Bays = body.Bays
		return nil
	})
	g.Go(func() error {
		var body struct {
			Queue []QueueEntry `json:"queue"`
		}
		if err := c.getJSON(gctx, "/service-bays/queue", &body); err != nil {
			return err
		}
		snap.Queue = body.Queue
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("fallback: build request %s: %w", path, err)
	}

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fallback: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fallback: fetch %s: status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("fallback: decode %s: %w", path, err)
	}
	return nil
}

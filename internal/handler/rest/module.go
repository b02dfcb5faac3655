package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"

	"github.com/bayline/shop-sync-service/internal/config"
	"github.com/bayline/shop-sync-service/internal/handler/ws"
)

// NewRouter wires the snapshot endpoints and the websocket upgrade onto one
// mux. Snapshot routes are unauthenticated reads; the websocket handshake
// carries its own credential.
func NewRouter(snapshot *SnapshotHandler, wsHandler *ws.WSHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/service-bays", snapshot.Bays)
		r.Get("/service-bays/queue", snapshot.Queue)
		r.Get("/chat/appointment/{appointmentID}", snapshot.ChatTail)
		r.Get("/stats", snapshot.Stats)
	})

	// The websocket pump outlives any sane request timeout, so it stays
	// outside the Timeout group.
	r.Handle("/ws", wsHandler)

	return r
}

func NewServer(cfg *config.Config, router chi.Router) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

var Module = fx.Module(
	"rest",

	fx.Provide(
		NewSnapshotHandler,
		ws.NewWSHandler,
		NewRouter,
		NewServer,
	),

	fx.Invoke(func(lc fx.Lifecycle, srv *http.Server, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					logger.Info("http server listening", "addr", srv.Addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("http server failed", "error", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)

package registry

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/bayline/shop-sync-service/internal/config"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *Hub {
			return NewHub(logger,
				WithMailboxSize(cfg.Registry.MailboxSize),
				WithDeliveryTimeout(cfg.Registry.DeliveryTimeout),
				WithEvictionInterval(cfg.Registry.EvictionInterval),
				WithIdleTimeout(cfg.Registry.IdleTimeout),
			)
		},
		func(h *Hub) Hubber { return h },
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // stop all room goroutines
				return nil
			},
		})
	}),
)

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/bayline/shop-sync-service/internal/domain/model"
)

// ResolverMiddleware decorates the resolver with timing and outcome logging
// without touching the lookup logic.
type ResolverMiddleware struct {
	Next   Resolver
	Logger *slog.Logger
}

func (m *ResolverMiddleware) Resolve(ctx context.Context, principalID string) (model.Recipient, error) {
	start := time.Now()

	rcpt, err := m.Next.Resolve(ctx, principalID)
	if err != nil {
		m.Logger.Warn("recipient resolution failed",
			"principal", principalID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return rcpt, err
	}

	m.Logger.Debug("recipient resolved",
		"principal", principalID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rcpt, nil
}

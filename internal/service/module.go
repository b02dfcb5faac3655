package service

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			NewStaticTokenAuth,
			fx.As(new(Auther)),
		),
		fx.Annotate(
			NewEventBroadcaster,
			fx.As(new(Broadcaster)),
		),
		NewPresence,
		fx.Annotate(
			NewConnectionManager,
			fx.As(new(Manager)),
		),
	),

	fx.Invoke(func(lc fx.Lifecycle, m Manager, p *Presence) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if cm, ok := m.(*ConnectionManager); ok {
					cm.Shutdown()
				}
				p.Shutdown()
				return nil
			},
		})
	}),
)

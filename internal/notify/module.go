package notify

import (
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"notify",

	fx.Provide(
		NewSMSSender,
		NewEmailSender,
		NewHTTPDirectory,
		fx.Annotate(
			NewCachedResolver,
			fx.As(new(Resolver)),
		),
		NewDispatcher,
	),

	// Intercept the resolver to add cross-cutting observability.
	fx.Decorate(func(orig Resolver, logger *slog.Logger) Resolver {
		return &ResolverMiddleware{
			Next:   orig,
			Logger: logger,
		}
	}),
)

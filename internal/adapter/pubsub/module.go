package pubsub

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"pubsub",

	fx.Provide(
		NewProvider,

		// The export publisher feeds the shared fan-out exchange.
		func(p *Provider) (message.Publisher, error) {
			return p.BuildPublisher(SyncExchange)
		},

		NewEventDispatcher,
	),
)

package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/bayline/shop-sync-service/internal/config"
)

// Provider builds watermill publishers and subscribers. With a broker URL it
// speaks AMQP topic exchanges; without one it degrades to the in-process
// gochannel bus, which keeps single-instance deployments and tests free of
// external infrastructure.
type Provider struct {
	amqpURL string
	logger  watermill.LoggerAdapter

	local *gochannel.GoChannel
}

func NewProvider(cfg *config.Config, logger watermill.LoggerAdapter) *Provider {
	p := &Provider{
		amqpURL: cfg.Broker.AMQPURL,
		logger:  logger,
	}
	if p.amqpURL == "" {
		p.local = gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger)
	}
	return p
}

// BuildPublisher returns a publisher bound to the given exchange.
func (p *Provider) BuildPublisher(exchange string) (message.Publisher, error) {
	if p.local != nil {
		return p.local, nil
	}
	pub, err := amqp.NewPublisher(p.amqpConfig(exchange, ""), p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: build publisher for %s: %w", exchange, err)
	}
	return pub, nil
}

// BuildSubscriber returns a subscriber consuming the given queue bound to
// the exchange. The routing-key binding comes from the topic passed to
// Subscribe.
func (p *Provider) BuildSubscriber(queue, exchange string) (message.Subscriber, error) {
	if p.local != nil {
		return p.local, nil
	}
	sub, err := amqp.NewSubscriber(p.amqpConfig(exchange, queue), p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: build subscriber %s on %s: %w", queue, exchange, err)
	}
	return sub, nil
}

func (p *Provider) amqpConfig(exchange, queue string) amqp.Config {
	generateQueue := amqp.GenerateQueueNameTopicName
	if queue != "" {
		generateQueue = amqp.GenerateQueueNameConstant(queue)
	}
	return amqp.Config{
		Connection: amqp.ConnectionConfig{
			AmqpURI: p.amqpURL,
		},
		Marshaler: amqp.DefaultMarshaler{},
		Exchange: amqp.ExchangeConfig{
			GenerateName: func(string) string { return exchange },
			Type:         "topic",
			Durable:      true,
		},
		Queue: amqp.QueueConfig{
			GenerateName: generateQueue,
			Durable:      true,
		},
		QueueBind: amqp.QueueBindConfig{
			GenerateRoutingKey: func(topic string) string { return topic },
		},
		Publish: amqp.PublishConfig{
			GenerateRoutingKey: func(topic string) string { return topic },
		},
		Consume: amqp.ConsumeConfig{
			Qos: amqp.QosConfig{PrefetchCount: 16},
		},
		TopologyBuilder: &amqp.DefaultTopologyBuilder{},
	}
}

package amqp

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/bayline/shop-sync-service/internal/adapter/pubsub"
	"github.com/bayline/shop-sync-service/internal/config"
	"github.com/bayline/shop-sync-service/internal/notify"
	"github.com/bayline/shop-sync-service/internal/service"
)

const (
	// ------------------- EXCHANGES (SOURCES) -------------------
	AppointmentEventsExchange = "shop_appointment.events"
	BayEventsExchange         = "shop_bay.events"
	ChatEventsExchange        = "shop_chat.events"

	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicAppointmentConfirmed = "shop_appointment.#.confirmed.v1"
	TopicServiceRecommended   = "shop_appointment.#.recommendation.v1"
	TopicBayStatusChanged     = "shop_bay.#.status.v1"
	TopicQueueStatusChanged   = "shop_bay.#.queue.v1"
	TopicStockLow             = "shop_bay.#.stock.low.v1"
	TopicChatMessageCreated   = "shop_chat.#.message.created.v1"

	// Cross-instance fan-out re-import.
	TopicSyncFanout = "shop_sync.#"

	// ------------------- QUEUES (CONSUMERS) --------------------
	SyncProcessorQueue = "shop-sync.incoming-processor.v1"
	SyncPoisonTopic    = "shop-sync.incoming-processor.v1.poison"
)

// MessageHandler hosts the bus-facing business handlers. Each handler maps
// one shop-core payload to a StateEvent, publishes it through the
// broadcaster, and hands offline-notifiable events to the notification
// dispatcher.
type MessageHandler struct {
	broadcaster service.Broadcaster
	resolver    notify.Resolver
	notifier    *notify.Dispatcher
	dispatcher  pubsub.EventDispatcher
	logger      *slog.Logger
	nodeID      string
}

func NewMessageHandler(
	cfg *config.Config,
	broadcaster service.Broadcaster,
	resolver notify.Resolver,
	notifier *notify.Dispatcher,
	dispatcher pubsub.EventDispatcher,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		broadcaster: broadcaster,
		resolver:    resolver,
		notifier:    notifier,
		dispatcher:  dispatcher,
		logger:      logger,
		nodeID:      cfg.Service.NodeID,
	}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{
		CloseTimeout: 30 * time.Second,
	}, logger)
}

// RegisterHandlers binds every consumer onto the router. Queues are unique
// per node: each instance keeps its own room registry and snapshot store, so
// every instance must see every event.
func (h *MessageHandler) RegisterHandlers(router *message.Router, provider *pubsub.Provider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), SyncPoisonTopic)
	if err != nil {
		return fmt.Errorf("amqp: poison queue setup: %w", err)
	}

	configs := []struct {
		name     string
		exchange string
		topic    string
		handler  message.NoPublishHandlerFunc
	}{
		{"ON_APPT_CONFIRMED", AppointmentEventsExchange, TopicAppointmentConfirmed, Bind(h, h.OnAppointmentConfirmedV1)},
		{"ON_SVC_RECOMMENDED", AppointmentEventsExchange, TopicServiceRecommended, Bind(h, h.OnServiceRecommendedV1)},
		{"ON_BAY_STATUS", BayEventsExchange, TopicBayStatusChanged, Bind(h, h.OnBayStatusChangedV1)},
		{"ON_QUEUE_STATUS", BayEventsExchange, TopicQueueStatusChanged, Bind(h, h.OnQueueStatusChangedV1)},
		{"ON_STOCK_LOW", BayEventsExchange, TopicStockLow, Bind(h, h.OnStockLowV1)},
		{"ON_CHAT_MSG_CREATED", ChatEventsExchange, TopicChatMessageCreated, Bind(h, h.OnChatMessageCreatedV1)},
		{"ON_SYNC_FANOUT", pubsub.SyncExchange, TopicSyncFanout, h.OnSyncFanout},
	}

	for _, c := range configs {
		// Per-node queue, e.g. shop-sync.incoming-processor.v1.garage-01.on_bay_status
		handlerQueue := fmt.Sprintf("%s.%s.%s", SyncProcessorQueue, h.nodeID, strings.ToLower(c.name))

		sub, err := provider.BuildSubscriber(handlerQueue, c.exchange)
		if err != nil {
			return err
		}

		router.AddNoPublisherHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("amqp pipeline ready", "node", h.nodeID, "handlers", len(configs))
	return nil
}

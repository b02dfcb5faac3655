package cmd

import (
	"go.uber.org/fx"

	"github.com/bayline/shop-sync-service/internal/adapter/pubsub"
	"github.com/bayline/shop-sync-service/internal/config"
	"github.com/bayline/shop-sync-service/internal/domain/registry"
	amqphandler "github.com/bayline/shop-sync-service/internal/handler/amqp"
	"github.com/bayline/shop-sync-service/internal/handler/rest"
	"github.com/bayline/shop-sync-service/internal/notify"
	"github.com/bayline/shop-sync-service/internal/service"
	"github.com/bayline/shop-sync-service/internal/state"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracerProvider,
			state.NewStore,
		),
		pubsub.Module,
		registry.Module,
		service.Module,
		notify.Module,
		rest.Module,
		amqphandler.Module,
	)
}

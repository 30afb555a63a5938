package main

import (
	"log"

	"promowheel/pkg/config"
	"promowheel/pkg/db"
	"promowheel/pkg/gen"
	"promowheel/pkg/hashistack/secretmanager"
	"promowheel/pkg/logger"
	"promowheel/pkg/otelcol"
	"promowheel/pkg/task"
	"promowheel/services/customer"
	"promowheel/services/notification"
	"promowheel/services/tenant"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		db.Module,
		gen.Module,
		task.Server,
		tenant.Module,
		customer.Module,
		notification.Worker,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

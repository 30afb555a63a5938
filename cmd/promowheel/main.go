package main

import (
	"log"

	"promowheel/pkg/accesscontrol"
	"promowheel/pkg/config"
	"promowheel/pkg/db"
	"promowheel/pkg/featureflags"
	"promowheel/pkg/gen"
	"promowheel/pkg/hashistack/secretmanager"
	"promowheel/pkg/health"
	"promowheel/pkg/httpapi"
	"promowheel/pkg/logger"
	"promowheel/pkg/minio"
	"promowheel/pkg/otelcol"
	"promowheel/pkg/profiling"
	"promowheel/pkg/redis"
	"promowheel/pkg/sequence"
	"promowheel/pkg/server"
	"promowheel/pkg/task"
	"promowheel/services/campaign"
	"promowheel/services/customer"
	"promowheel/services/manager"
	"promowheel/services/notification"
	"promowheel/services/prize"
	"promowheel/services/quota"
	"promowheel/services/session"
	"promowheel/services/spin"
	"promowheel/services/tenant"
	"promowheel/services/verification"
	"promowheel/services/voucher"

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
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		sequence.Module,
		featureflags.Module,
		accesscontrol.Module,
		minio.Client,
		task.Client,
		health.Module,
		httpapi.Module,
		server.ProvideHTTPServer,

		campaign.Module,
		customer.Module,
		manager.Module,
		prize.Module,
		notification.Module,
		session.Server,
		tenant.Server,
		quota.Server,
		voucher.Server,
		verification.Server,
		spin.Server,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})

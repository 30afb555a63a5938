package main

import (
	"context"
	"flag"
	"log"

	"promowheel/pkg/config"
	"promowheel/pkg/db"
	"promowheel/pkg/db/migrations"
	"promowheel/pkg/hashistack/secretmanager"
	"promowheel/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	rollback := flag.Bool("rollback", false, "roll back the last migration instead of migrating")
	flag.Parse()

	var gdb *gorm.DB
	app := fx.New(
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		fx.Populate(&gdb),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	)
	if err := app.Err(); err != nil {
		log.Fatalf("fx init failed: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("fx start failed: %v", err)
	}
	defer func() { _ = app.Stop(ctx) }()

	if *rollback {
		if err := migrations.RollbackLast(gdb); err != nil {
			zap.L().Fatal("rollback failed", zap.Error(err))
		}
		zap.L().Info("rolled back last migration")
		return
	}
	if err := migrations.Run(gdb); err != nil {
		zap.L().Fatal("migration failed", zap.Error(err))
	}
}

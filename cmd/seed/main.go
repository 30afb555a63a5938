package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"promowheel/pkg/accesscontrol"
	"promowheel/pkg/config"
	"promowheel/pkg/db"
	"promowheel/pkg/db/migrations"
	"promowheel/pkg/gen"
	"promowheel/pkg/hashistack/secretmanager"
	"promowheel/pkg/logger"
	"promowheel/pkg/redis"
	"promowheel/services/manager"
	"promowheel/services/session"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func nowUTC() time.Time { return time.Now().UTC() }

func main() {
	migrate := flag.Bool("migrate", true, "apply migrations before seeding")
	flag.Parse()

	var (
		gdb      *gorm.DB
		node     *snowflake.Node
		sessions session.Store
		cfg      *config.Config
		managers *manager.Store
	)
	app := fx.New(
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		manager.Module,
		session.Module,
		fx.Populate(&gdb, &node, &sessions, &cfg, &managers),
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

	if *migrate {
		if err := migrations.Run(gdb); err != nil {
			zap.L().Fatal("migration failed", zap.Error(err))
		}
	}

	m, err := seedDemo(ctx, gdb, node)
	switch {
	case errors.Is(err, errAlreadySeeded):
		zap.L().Info("demo tenant exists, issuing a new session only")
		m, err = managers.GetByEmail(ctx, "manager@acme.example")
		if err == nil && m == nil {
			err = errors.New("demo manager missing")
		}
	}
	if err != nil {
		zap.L().Fatal("seed failed", zap.Error(err))
	}

	token, err := sessions.Create(ctx, accesscontrol.Identity{
		ManagerID: m.ID,
		TenantID:  m.TenantID,
		Role:      m.Role,
	}, cfg.Session.TTL)
	if err != nil {
		zap.L().Fatal("failed to create manager session", zap.Error(err))
	}
	fmt.Printf("manager session token: %s\n", token)
}

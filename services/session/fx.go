package session

import (
	"time"

	"promowheel/pkg/config"
	"promowheel/pkg/httpapi"
	"promowheel/pkg/middleware"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StoreParams struct {
	fx.In
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client    `optional:"true"`
	Clock  func() time.Time `name:"clock" optional:"true"`
}

// NewStore picks the backend named by SESSION.TYPE. Redis is the default
// when a client is wired.
func NewStore(p StoreParams) Store {
	switch {
	case p.Config.Session.Type == "database" || p.Redis == nil:
		zap.L().Info("using database session store")
		return Shared(NewDBStore(p.DB, p.Clock))
	default:
		zap.L().Info("using redis session store")
		return Shared(NewRedisStore(p.Redis))
	}
}

var Module = fx.Module("session.module",
	fx.Provide(
		NewStore,
		func(s Store) middleware.IdentityValidator { return s },
	),
)

var Server = fx.Module("session.server",
	Module,
	fx.Provide(httpapi.AsRoutes(NewHandler)),
)

package voucher

import (
	"promowheel/pkg/httpapi"
	"promowheel/services/manager"
	"promowheel/services/quota"

	"go.uber.org/fx"
)

var Module = fx.Module("voucher.module",
	fx.Provide(
		NewService,
		func(q *quota.Service) Quota { return q },
		func(m *manager.Store) ActorDirectory { return m },
	),
)

var Server = fx.Module("voucher.server",
	Module,
	fx.Provide(
		NewQRGenerator,
		httpapi.AsRoutes(NewHandler),
	),
)

package verification

import (
	"promowheel/pkg/httpapi"
	"promowheel/services/customer"
	"promowheel/services/manager"

	"go.uber.org/fx"
)

var Module = fx.Module("verification.module",
	fx.Provide(
		NewService,
		func(m *manager.Store) Managers { return m },
		func(c *customer.Store) SpinGranter { return c },
	),
)

var Server = fx.Module("verification.server",
	Module,
	fx.Provide(httpapi.AsRoutes(NewHandler)),
)

package quota

import (
	"promowheel/pkg/httpapi"
	"promowheel/services/tenant"

	"go.uber.org/fx"
)

var Module = fx.Module("quota.module",
	fx.Provide(
		NewService,
		NewPolicy,
		func(t *tenant.Service) Tenants { return t },
	),
)

var Server = fx.Module("quota.server",
	Module,
	fx.Provide(httpapi.AsRoutes(NewHandler)),
)

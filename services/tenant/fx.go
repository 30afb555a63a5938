package tenant

import (
	"promowheel/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("tenant.module",
	fx.Provide(
		NewService,
	),
)

var Server = fx.Module("tenant.server",
	Module,
	fx.Provide(
		httpapi.AsRoutes(NewHandler),
		NewSweeper,
	),
	fx.Invoke(StartSweeper),
)

package manager

import "go.uber.org/fx"

var Module = fx.Module("manager.module",
	fx.Provide(NewStore),
)

package prize

import (
	"promowheel/services/campaign"

	"go.uber.org/fx"
)

var Module = fx.Module("prize.module",
	fx.Provide(
		NewSelector,
		func(s *campaign.Store) Catalog { return s },
	),
)

package spin

import (
	"promowheel/pkg/httpapi"
	"promowheel/services/campaign"
	"promowheel/services/customer"
	"promowheel/services/prize"
	"promowheel/services/quota"
	"promowheel/services/tenant"
	"promowheel/services/voucher"

	"go.uber.org/fx"
)

var Module = fx.Module("spin.module",
	fx.Provide(
		NewService,
		func(s *customer.Store) Users { return s },
		func(s *campaign.Store) Catalog { return s },
		func(s *tenant.Service) Tenants { return s },
		func(s *prize.Selector) Selector { return s },
		func(s *quota.Service) Quota { return s },
		func(s *voucher.Service) Vouchers { return s },
	),
)

var Server = fx.Module("spin.server",
	Module,
	fx.Provide(httpapi.AsRoutes(NewHandler)),
)

package notification

import (
	"promowheel/services/customer"
	"promowheel/services/tenant"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

// Module provides the producing side used by the API.
var Module = fx.Module("notification.module",
	fx.Provide(NewNotifier),
)

// Worker delivers queued notifications.
var Worker = fx.Module("notification.worker",
	fx.Provide(
		NewSender,
		NewHandler,
		func(t *tenant.Service) Tenants { return t },
		func(s *customer.Store) Users { return s },
	),
	fx.Invoke(func(mux *asynq.ServeMux, h *Handler) { h.Register(mux) }),
)

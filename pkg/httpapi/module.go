package httpapi

import (
	"net/http"

	"promowheel/pkg/config"
	"promowheel/pkg/health"
	"promowheel/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		NewEngine,
		NewHandler,
	),
	fx.Invoke(registerRoutes),
)

// Routes is implemented by every service that exposes HTTP endpoints.
type Routes interface {
	Register(r gin.IRouter)
}

// AsRoutes annotates a constructor so its result joins the "routes" group.
func AsRoutes(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(Routes)),
		fx.ResultTags(`group:"routes"`),
	)
}

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(),
		middleware.Error(!cfg.IsProduction()),
	)
	return r
}

func NewHandler(cfg *config.Config, engine *gin.Engine) http.Handler {
	return otelhttp.NewHandler(engine, cfg.AppName)
}

type routeParams struct {
	fx.In
	Engine *gin.Engine
	Health health.HealthService `optional:"true"`
	Routes []Routes             `group:"routes"`
}

func registerRoutes(p routeParams) {
	if p.Health != nil {
		p.Engine.GET("/healthz", p.Health.Liveness)
		p.Engine.GET("/readyz", p.Health.Readiness)
	}
	p.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	for _, r := range p.Routes {
		r.Register(p.Engine)
	}
}

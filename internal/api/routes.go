package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

type RouteConfig struct {
	AdminUser      string
	AdminPassword  string
	RateLimit      int
	MetricsEnabled bool
}

func SetupRoutes(app *fiber.App, handler *Handler, cfg RouteConfig) {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}

	// Global middlewares
	app.Use(RequestID())
	app.Use(ErrorHandler())

	// Health checks (sem rate limiting)
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)

	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1")
	v1.Use(RateLimiter(cfg.RateLimit))
	v1.Use(PrometheusMiddleware())

	pf := v1.Group("/portfolio")
	pf.Get("/", handler.GetPortfolio)
	pf.Get("/positions", handler.GetPositions)
	pf.Get("/sectors", handler.GetSectors)
	pf.Get("/trades", handler.GetTradeHistory)
	pf.Get("/closed-trades", handler.GetClosedTrades)

	val := v1.Group("/valuation")
	val.Post("/dcf", handler.ProjectDCF)
	val.Get("/:symbol/scenario", handler.GetScenario)

	fund := v1.Group("/fundamentals/:symbol")
	fund.Get("/profile", handler.GetProfile)
	fund.Get("/growth", handler.GetGrowth)
	fund.Get("/comparables", handler.GetComparables)
	fund.Get("/statements/:kind", handler.GetStatement)

	v1.Get("/sentiment/:symbol", handler.GetSentiment)

	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD não definida, rotas administrativas desativadas")
		return
	}

	admin := v1.Group("/admin")
	admin.Use(BasicAuth(cfg.AdminUser, cfg.AdminPassword))
	admin.Delete("/cache/:pattern", handler.InvalidateCache)
	admin.Get("/stats", handler.GetSystemStats)
	admin.Post("/load", handler.LoadDataFromFiles)
}

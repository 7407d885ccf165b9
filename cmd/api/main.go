package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/internal/api"
	"github.com/jeovahfialho/portfolio-analyzer/internal/config"
	"github.com/jeovahfialho/portfolio-analyzer/internal/ingestion"
	"github.com/jeovahfialho/portfolio-analyzer/internal/marketdata"
	"github.com/jeovahfialho/portfolio-analyzer/internal/scheduler"
	"github.com/jeovahfialho/portfolio-analyzer/internal/sentiment"
	"github.com/jeovahfialho/portfolio-analyzer/internal/service"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/cache"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/jsonfile"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/postgres"
	pkglogger "github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

// @title Portfolio Analyzer API
// @version 1.0
// @description API de posições, operações encerradas, valuation DCF, fundamentos e sentimento de notícias
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
func main() {
	cfg := config.Load()

	if err := pkglogger.Init(cfg.LogLevel, cfg.Environment == "development"); err != nil {
		log.Fatal("Erro ao inicializar logger:", err)
	}
	defer pkglogger.Close()

	ctx := context.Background()

	sectors, err := config.LoadSectorMap(cfg)
	if err != nil {
		pkglogger.Fatal("erro ao carregar setores", zap.Error(err))
	}

	store := connectCache(ctx, cfg)
	defer store.Close()

	market := marketdata.NewClient(marketdata.Config{
		FMPAPIKey:       cfg.FMPAPIKey,
		FMPBaseURL:      cfg.FMPBaseURL,
		FMPStableURL:    cfg.FMPStableURL,
		PolygonAPIKey:   cfg.PolygonAPIKey,
		PolygonBaseURL:  cfg.PolygonBaseURL,
		Timeout:         cfg.HTTPTimeout,
		Concurrency:     cfg.FetchConcurrency,
		QuoteTTL:        cfg.CacheTTL,
		FundamentalsTTL: cfg.FundamentalsCacheTTL,
	}, store)

	deps := api.Deps{Cache: store}

	var trades service.TradeSource
	switch cfg.TradeSource {
	case config.TradeSourcePostgres:
		db, err := connectPostgres(ctx, cfg)
		if err != nil {
			pkglogger.Fatal("erro ao conectar PostgreSQL", zap.Error(err))
		}
		defer db.Close()

		repo := postgres.NewTradeRepository(db)
		trades = repo

		parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers)
		loader := ingestion.NewBulkLoader(db.Pool(), cfg.BatchSize)

		deps.Database = db
		deps.Trades = repo
		deps.Ingestion = service.NewIngestionService(parser, loader, cfg.Workers)
	default:
		trades = jsonfile.NewStore(cfg.TradesFile, cfg.ClosedTradesFile)
		pkglogger.Info("usando arquivos JSON",
			zap.String("trades", cfg.TradesFile),
			zap.String("closed_trades", cfg.ClosedTradesFile))
	}

	// Services
	deps.Portfolio = service.NewPortfolioService(trades, market, sectors)
	deps.Valuation = service.NewValuationService(market)
	deps.Fundamentals = service.NewFundamentalsService(market, cfg.FetchConcurrency)
	deps.Sentiment = service.NewSentimentService(market, sentiment.NewAnalyzer(sentiment.NewVaderScorer()))

	warmer := scheduler.NewQuoteWarmer(cfg.QuoteRefreshSchedule, deps.Portfolio, market, time.Minute)
	if err := warmer.Start(); err != nil {
		pkglogger.Warn("aquecimento de cotações desativado", zap.Error(err))
	} else {
		deps.Warmer = warmer
	}

	handler := api.NewHandler(deps)

	// Fiber app
	app := fiber.New(fiber.Config{
		Prefork:                 false,
		ServerHeader:            "Portfolio-Analyzer",
		DisableStartupMessage:   false,
		AppName:                 "Portfolio Analyzer " + api.Version,
		ReadTimeout:             cfg.APIReadTimeout,
		WriteTimeout:            cfg.APIWriteTimeout,
		IdleTimeout:             120 * time.Second,
		ReadBufferSize:          8192,
		WriteBufferSize:         8192,
		CompressedFileSuffix:    ".gz",
		ProxyHeader:             "X-Forwarded-For",
		EnableTrustedProxyCheck: true,
		BodyLimit:               10 * 1024 * 1024, // 10MB
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	api.SetupRoutes(app, handler, api.RouteConfig{
		AdminUser:      cfg.AdminUser,
		AdminPassword:  cfg.AdminPassword,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		pkglogger.Info("encerrando servidor")

		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if deps.Warmer != nil {
			deps.Warmer.Stop(stopCtx)
		}

		if err := app.ShutdownWithContext(stopCtx); err != nil {
			pkglogger.Error("erro ao encerrar servidor", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	pkglogger.Info("iniciando servidor",
		zap.String("addr", addr),
		zap.String("trade_source", cfg.TradeSource))

	if err := app.Listen(addr); err != nil {
		pkglogger.Fatal("erro no servidor", zap.Error(err))
	}
}

// connectPostgres opens the pool and applies pending migrations.
func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar conexão: %w", err)
	}

	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao aplicar migrations: %w", err)
	}

	pkglogger.Info("✅ Conectado ao PostgreSQL")
	return db, nil
}

// connectCache prefers Redis and falls back to an in-process cache.
func connectCache(ctx context.Context, cfg *config.Config) cache.Store {
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		pkglogger.Warn("⚠️ Redis não disponível, usando cache em memória", zap.Error(err))
		return cache.NewMemoryCache()
	}

	pkglogger.Info("✅ Conectado ao Redis")
	return redisCache
}

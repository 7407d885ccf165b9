package api

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/scheduler"
	"github.com/jeovahfialho/portfolio-analyzer/internal/service"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/cache"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/postgres"
	"github.com/jeovahfialho/portfolio-analyzer/internal/valuation"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

const Version = "1.0.0"

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps wires the handler. Database, Trades, Ingestion and Warmer are nil when the
// server runs from JSON files without Postgres.
type Deps struct {
	Portfolio    *service.PortfolioService
	Valuation    *service.ValuationService
	Fundamentals *service.FundamentalsService
	Sentiment    *service.SentimentService
	Ingestion    *service.IngestionService
	Cache        cache.Store
	Database     *postgres.DB
	Trades       *postgres.TradeRepository
	Warmer       *scheduler.QuoteWarmer
}

type Handler struct {
	deps    Deps
	started time.Time
}

func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, started: time.Now()}
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := map[string]HealthChecker{}
	if h.deps.Database != nil {
		checks["database"] = h.deps.Database
	}
	if h.deps.Cache != nil {
		checks["cache"] = h.deps.Cache
	}

	services := make(map[string]ServiceHealth, len(checks))
	status := "ready"

	for name, checker := range checks {
		start := time.Now()
		if err := checker.HealthCheck(ctx); err != nil {
			services[name] = ServiceHealth{Status: "unhealthy", Error: err.Error()}
			status = "not_ready"
			continue
		}
		services[name] = ServiceHealth{Status: "healthy", Latency: time.Since(start).String()}
	}

	response := HealthResponse{
		Status:    status,
		Version:   Version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}

func (h *Handler) GetPortfolio(c *fiber.Ctx) error {
	report, err := h.deps.Portfolio.Report(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *Handler) GetPositions(c *fiber.Ctx) error {
	positions, err := h.deps.Portfolio.Positions(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(newList(positions))
}

func (h *Handler) GetSectors(c *fiber.Ctx) error {
	sectors, err := h.deps.Portfolio.Sectors(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(newList(sectors))
}

func (h *Handler) GetTradeHistory(c *fiber.Ctx) error {
	trades, err := h.deps.Portfolio.History(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(newList(trades))
}

func (h *Handler) GetClosedTrades(c *fiber.Ctx) error {
	closed, err := h.deps.Portfolio.ClosedTrades(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(newList(closed))
}

// ProjectDCF decodes the body over the default scenario, so omitted fields keep
// their dashboard defaults. Rates are fractions.
func (h *Handler) ProjectDCF(c *fiber.Ctx) error {
	scenario := valuation.DefaultScenario()
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&scenario); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "corpo da requisição inválido")
		}
	}
	scenario.Symbol = domain.NormalizeTicker(scenario.Symbol)

	result, err := h.deps.Valuation.Project(c.UserContext(), scenario)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// GetScenario pre-fills a scenario for symbol and projects it. When the revenue
// lookup fails the defaults are still returned, with a warning.
func (h *Handler) GetScenario(c *fiber.Ctx) error {
	ctx := c.UserContext()
	symbol := c.Params("symbol")

	scenario, err := h.deps.Valuation.ScenarioFor(ctx, symbol)
	response := ScenarioResponse{Scenario: scenario}
	if err != nil {
		logger.WithContext(ctx).Warn("usando cenário padrão", zap.String("symbol", symbol), zap.Error(err))
		response.Warning = "receita indisponível, usando valores padrão"
	}

	result, err := h.deps.Valuation.Project(ctx, scenario)
	if err != nil {
		return err
	}
	response.Result = result

	return c.JSON(response)
}

func (h *Handler) GetProfile(c *fiber.Ctx) error {
	profile, err := h.deps.Fundamentals.Profile(c.UserContext(), c.Params("symbol"))
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

func (h *Handler) GetGrowth(c *fiber.Ctx) error {
	points, err := h.deps.Fundamentals.Growth(c.UserContext(), c.Params("symbol"))
	if err != nil {
		return err
	}
	return c.JSON(newList(points))
}

func (h *Handler) GetComparables(c *fiber.Ctx) error {
	result, err := h.deps.Fundamentals.Comparables(c.UserContext(), c.Params("symbol"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handler) GetStatement(c *fiber.Ctx) error {
	symbol := domain.NormalizeTicker(c.Params("symbol"))
	kind := c.Params("kind")

	data, err := h.deps.Fundamentals.Statement(c.UserContext(), kind, symbol)
	if err != nil {
		return err
	}

	return c.JSON(StatementResponse{Symbol: symbol, Kind: kind, Data: data})
}

func (h *Handler) GetSentiment(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", service.DefaultNewsLimit)

	report, err := h.deps.Sentiment.Analyze(c.UserContext(), c.Params("symbol"), limit)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	if h.deps.Cache == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "cache não configurado")
	}

	pattern := c.Params("pattern", "*")
	if err := h.deps.Cache.DeletePattern(c.UserContext(), pattern); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": fmt.Sprintf("cache invalidado para padrão: %s", pattern),
	})
}

func (h *Handler) GetSystemStats(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := SystemStatsResponse{
		API: APIStats{
			ActiveGoroutines: runtime.NumGoroutine(),
			MemoryUsed:       fmt.Sprintf("%d MB", m.Alloc/1024/1024),
			Uptime:           time.Since(h.started).Round(time.Second).String(),
		},
	}

	if h.deps.Database != nil {
		stats := h.deps.Database.Stats()
		response.Database = &stats
	}
	if h.deps.Trades != nil {
		tables, err := h.deps.Trades.Stats(c.UserContext())
		if err != nil {
			return err
		}
		response.Tables = tables
	}
	if h.deps.Warmer != nil {
		stats := h.deps.Warmer.Stats()
		response.Scheduler = &stats
	}

	return c.JSON(response)
}

func (h *Handler) LoadDataFromFiles(c *fiber.Ctx) error {
	if h.deps.Ingestion == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "carga exige TRADE_SOURCE=postgres")
	}

	var req LoadDataRequest
	if err := c.BodyParser(&req); err != nil || len(req.Files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "corpo da requisição inválido")
	}

	jobID := uuid.NewString()

	if req.Async {
		ctx := context.WithValue(context.Background(), logger.RequestIDKey, getRequestID(c))
		go h.deps.Ingestion.ProcessFiles(ctx, jobID, req.Files)

		return c.Status(fiber.StatusAccepted).JSON(LoadDataResponse{
			JobID:   jobID,
			Status:  "processing",
			Message: "processamento iniciado",
		})
	}

	report := h.deps.Ingestion.ProcessFiles(c.UserContext(), jobID, req.Files)

	status := "completed"
	if report.Failed > 0 {
		status = "partial"
	}

	return c.JSON(LoadDataResponse{
		JobID:   report.JobID,
		Status:  status,
		Message: fmt.Sprintf("%d registros carregados", report.Total),
		Report:  report,
	})
}

package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/ingestion"
	"github.com/jeovahfialho/portfolio-analyzer/internal/marketdata"
	"github.com/jeovahfialho/portfolio-analyzer/internal/sentiment"
	"github.com/jeovahfialho/portfolio-analyzer/internal/service"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/cache"
)

type memoryTrades struct {
	trades []domain.TradeRecord
	closed []domain.ClosedTrade
}

func (m memoryTrades) Trades(context.Context) ([]domain.TradeRecord, error) {
	return m.trades, nil
}

func (m memoryTrades) ClosedTrades(context.Context) ([]domain.ClosedTrade, error) {
	return m.closed, nil
}

type staticQuotes map[string]string

func (s staticQuotes) Quotes(_ context.Context, tickers []string) domain.QuoteSet {
	set := domain.NewQuoteSet()
	for _, t := range tickers {
		if p, ok := s[t]; ok {
			set.Add(domain.Quote{Ticker: t, Price: decimal.RequireFromString(p)})
		} else {
			set.Missing = append(set.Missing, t)
		}
	}
	return set
}

type stubProvider struct{}

func (stubProvider) IncomeStatements(_ context.Context, symbol string, _ int) ([]domain.IncomeStatement, error) {
	if symbol == "DOWN" {
		return nil, &marketdata.UpstreamError{Provider: "fmp", Status: 503}
	}
	return []domain.IncomeStatement{
		{CalendarYear: "2022", Revenue: 100e9, NetIncome: 10e9},
		{CalendarYear: "2023", Revenue: 125e9, NetIncome: 15e9},
	}, nil
}

func (stubProvider) KeyMetricsTTM(_ context.Context, symbol string) (domain.KeyMetricsTTM, error) {
	pe := 20.0
	return domain.KeyMetricsTTM{Symbol: symbol, PERatioTTM: &pe}, nil
}

func (stubProvider) Ratios(context.Context, string, int) ([]domain.RatioSnapshot, error) {
	pe := 18.0
	return []domain.RatioSnapshot{{PriceEarningsRatio: &pe}}, nil
}

func (stubProvider) Peers(_ context.Context, symbol string) ([]string, error) {
	if symbol == "NOPE" {
		return nil, fmt.Errorf("pares de NOPE: %w", marketdata.ErrNotFound)
	}
	return []string{"MSFT"}, nil
}

func (stubProvider) Statement(_ context.Context, kind, symbol string) (json.RawMessage, error) {
	if !marketdata.IsStatementKind(kind) {
		return nil, fmt.Errorf("%w: %q", marketdata.ErrUnknownStatement, kind)
	}
	return json.RawMessage(`[{"symbol":"` + symbol + `"}]`), nil
}

func (stubProvider) Profile(_ context.Context, symbol string) (domain.CompanyProfile, error) {
	if symbol == "NOPE" {
		return domain.CompanyProfile{}, fmt.Errorf("perfil de NOPE: %w", marketdata.ErrNotFound)
	}
	return domain.CompanyProfile{Symbol: symbol, Sector: "Technology", Industry: "Consumer Electronics"}, nil
}

func (stubProvider) News(_ context.Context, symbol string, _ int) ([]domain.NewsArticle, error) {
	return []domain.NewsArticle{{Title: symbol + " soars", PublishedUTC: time.Now()}}, nil
}

type oneScorer struct{}

func (oneScorer) Compound(string) float64 { return 0.9 }

type sliceLoader struct {
	mu    sync.Mutex
	count int
}

func (l *sliceLoader) LoadTrades(_ context.Context, trades []domain.TradeRecord) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count += len(trades)
	return int64(len(trades)), nil
}

func newTestApp(t *testing.T, deps Deps) *fiber.App {
	t.Helper()

	source := memoryTrades{
		trades: []domain.TradeRecord{
			{Ticker: "NU", Date: domain.NewDate(2024, 1, 2), Shares: decimal.NewFromInt(10), CostShare: decimal.NewFromInt(8)},
			{Ticker: "GXO", Date: domain.NewDate(2024, 2, 3), Shares: decimal.NewFromInt(2), CostShare: decimal.NewFromInt(50)},
		},
		closed: []domain.ClosedTrade{
			{Ticker: "CVS", EntryDate: domain.NewDate(2023, 1, 1), SellDate: domain.NewDate(2023, 1, 31),
				EntryPrice: decimal.NewFromInt(100), SellPrice: decimal.NewFromInt(120), ShareNumber: decimal.NewFromInt(1)},
		},
	}
	provider := stubProvider{}

	if deps.Portfolio == nil {
		deps.Portfolio = service.NewPortfolioService(source, staticQuotes{"NU": "12"}, domain.SectorMap{"NU": "Fintech"})
	}
	deps.Valuation = service.NewValuationService(provider)
	deps.Fundamentals = service.NewFundamentalsService(provider, 2)
	deps.Sentiment = service.NewSentimentService(provider, sentiment.NewAnalyzer(oneScorer{}))

	app := fiber.New()
	SetupRoutes(app, NewHandler(deps), RouteConfig{
		AdminUser:      "admin",
		AdminPassword:  "secret",
		RateLimit:      1000,
		MetricsEnabled: true,
	})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func get(t *testing.T, app *fiber.App, path string) (int, []byte) {
	return do(t, app, httptest.NewRequest(http.MethodGet, path, nil))
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withAdmin(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
	return req
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t, Deps{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestReadinessCheck(t *testing.T) {
	app := newTestApp(t, Deps{Cache: cache.NewMemoryCache()})

	status, body := get(t, app, "/ready")
	assert.Equal(t, fiber.StatusOK, status)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ready", health.Status)
	assert.Equal(t, "healthy", health.Services["cache"].Status)
}

func TestGetPortfolio(t *testing.T) {
	app := newTestApp(t, Deps{})

	status, body := get(t, app, "/api/v1/portfolio")
	require.Equal(t, fiber.StatusOK, status, string(body))

	var report struct {
		Positions []struct {
			Ticker        string  `json:"ticker"`
			HasMarketData bool    `json:"has_market_data"`
			GainPct       *float64 `json:"gain_pct"`
		} `json:"positions"`
		MissingPrices []string `json:"missing_prices"`
	}
	require.NoError(t, json.Unmarshal(body, &report))

	require.Len(t, report.Positions, 2)
	assert.Equal(t, "NU", report.Positions[0].Ticker)
	require.NotNil(t, report.Positions[0].GainPct)
	assert.InDelta(t, 50.0, *report.Positions[0].GainPct, 1e-9)
	assert.False(t, report.Positions[1].HasMarketData)
	assert.Equal(t, []string{"GXO"}, report.MissingPrices)
}

func TestGetPortfolioLists(t *testing.T) {
	app := newTestApp(t, Deps{})

	tests := []struct {
		path  string
		count int
	}{
		{"/api/v1/portfolio/positions", 2},
		{"/api/v1/portfolio/sectors", 1},
		{"/api/v1/portfolio/trades", 2},
		{"/api/v1/portfolio/closed-trades", 1},
	}

	for _, tt := range tests {
		status, body := get(t, app, tt.path)
		require.Equal(t, fiber.StatusOK, status, tt.path)

		var list struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(body, &list))
		assert.Equal(t, tt.count, list.Count, tt.path)
	}
}

func TestProjectDCF(t *testing.T) {
	app := newTestApp(t, Deps{})

	status, body := do(t, app, postJSON("/api/v1/valuation/dcf", `{"symbol":"aapl"}`))
	require.Equal(t, fiber.StatusOK, status, string(body))

	var result domain.DCFResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "AAPL", result.Scenario.Symbol)
	assert.InDelta(t, 88.75, result.IntrinsicValuePerShare, 0.01)
	assert.Len(t, result.Yearly, 5)
}

func TestProjectDCF_DomainError(t *testing.T) {
	app := newTestApp(t, Deps{})

	status, body := do(t, app, postJSON("/api/v1/valuation/dcf", `{"discount_rate":0.02,"terminal_growth_rate":0.03}`))
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, fiber.StatusUnprocessableEntity, errResp.Code)
	assert.NotEmpty(t, errResp.RequestID)
}

func TestProjectDCF_BadBody(t *testing.T) {
	app := newTestApp(t, Deps{})

	status, _ := do(t, app, postJSON("/api/v1/valuation/dcf", `{"discount_rate":`))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetScenario(t *testing.T) {
	app := newTestApp(t, Deps{})

	status, body := get(t, app, "/api/v1/valuation/aapl/scenario")
	require.Equal(t, fiber.StatusOK, status)

	var resp ScenarioResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 125.0, resp.Scenario.BaseRevenue)
	assert.Empty(t, resp.Warning)
	require.NotNil(t, resp.Result)

	status, body = get(t, app, "/api/v1/valuation/down/scenario")
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 400.0, resp.Scenario.BaseRevenue)
	assert.NotEmpty(t, resp.Warning)
}

func TestFundamentalsRoutes(t *testing.T) {
	app := newTestApp(t, Deps{})

	status, body := get(t, app, "/api/v1/fundamentals/aapl/growth")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), `"revenue_yoy_pct":25`)

	status, body = get(t, app, "/api/v1/fundamentals/aapl/comparables")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), `"average_pe":18`)

	status, _ = get(t, app, "/api/v1/fundamentals/nope/comparables")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = get(t, app, "/api/v1/fundamentals/aapl/statements/rating")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"symbol":"AAPL","kind":"rating","data":[{"symbol":"AAPL"}]}`, string(body))

	status, _ = get(t, app, "/api/v1/fundamentals/aapl/statements/insider-trading")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = get(t, app, "/api/v1/fundamentals/aapl/profile")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), `"industry":"Consumer Electronics"`)

	status, _ = get(t, app, "/api/v1/fundamentals/nope/profile")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestGetSentiment(t *testing.T) {
	app := newTestApp(t, Deps{})

	status, body := get(t, app, "/api/v1/sentiment/nu?limit=5")
	require.Equal(t, fiber.StatusOK, status)

	var report domain.SentimentReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, "NU", report.Symbol)
	assert.Equal(t, 1, report.Summary[domain.SentimentPositive])
}

func TestAdmin_RequiresAuth(t *testing.T) {
	app := newTestApp(t, Deps{Cache: cache.NewMemoryCache()})

	status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := do(t, app, withAdmin(httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), "active_goroutines")
}

func TestAdmin_InvalidateCache(t *testing.T) {
	store := cache.NewMemoryCache()
	require.NoError(t, store.Set(context.Background(), "quote:NU", 1, time.Hour))
	app := newTestApp(t, Deps{Cache: store})

	status, _ := do(t, app, withAdmin(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/cache/quote:*", nil)))
	require.Equal(t, fiber.StatusOK, status)

	var v int
	assert.ErrorIs(t, store.Get(context.Background(), "quote:NU", &v), cache.ErrMiss)
}

func TestAdmin_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, os.WriteFile(path, []byte("ticker;company;date;shares;cost_share\nNU;Nu;2024-01-02;10;8,5\n"), 0o644))

	loader := &sliceLoader{}
	ingest := service.NewIngestionService(ingestion.NewParser(100, 2), loader, 2)
	app := newTestApp(t, Deps{Ingestion: ingest})

	body := fmt.Sprintf(`{"files":[%q]}`, path)
	status, resp := do(t, app, withAdmin(postJSON("/api/v1/admin/load", body)))
	require.Equal(t, fiber.StatusOK, status, string(resp))

	var out LoadDataResponse
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Equal(t, "completed", out.Status)
	assert.NotEmpty(t, out.JobID)
	require.NotNil(t, out.Report)
	assert.Equal(t, int64(1), out.Report.Total)
	assert.Equal(t, 1, loader.count)
}

func TestAdmin_LoadWithoutDatabase(t *testing.T) {
	app := newTestApp(t, Deps{})

	status, _ := do(t, app, withAdmin(postJSON("/api/v1/admin/load", `{"files":["a.csv"]}`)))
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fiber.NewError(fiber.StatusTeapot, "x"), fiber.StatusTeapot},
		{fmt.Errorf("wrap: %w", marketdata.ErrNotFound), fiber.StatusNotFound},
		{&marketdata.UpstreamError{Provider: "polygon", Status: 500}, fiber.StatusBadGateway},
		{fmt.Errorf("outro"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		code, _ := statusFor(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestPrometheusMiddleware_RecordsErrorStatus(t *testing.T) {
	app := newTestApp(t, Deps{})
	const route = "/api/v1/valuation/dcf"
	before422 := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodPost, route, "422"))
	before200 := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodPost, route, "200"))

	status, _ := do(t, app, postJSON(route, `{"discount_rate":0.02,"terminal_growth_rate":0.03}`))
	require.Equal(t, fiber.StatusUnprocessableEntity, status)

	assert.Equal(t, before422+1, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodPost, route, "422")))
	assert.Equal(t, before200, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodPost, route, "200")))
}

func TestAdmin_DisabledWithoutPassword(t *testing.T) {
	app := fiber.New()
	SetupRoutes(app, NewHandler(Deps{Cache: cache.NewMemoryCache()}), RouteConfig{AdminUser: "admin"})

	status, _ := do(t, app, withAdmin(httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)))
	assert.Equal(t, fiber.StatusNotFound, status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.SetBasicAuth("admin", "")
	status, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusNotFound, status)
}

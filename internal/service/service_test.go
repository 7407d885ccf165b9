package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/sentiment"
	"github.com/jeovahfialho/portfolio-analyzer/internal/valuation"
)

type fakeTrades struct {
	trades []domain.TradeRecord
	closed []domain.ClosedTrade
	err    error
}

func (f *fakeTrades) Trades(context.Context) ([]domain.TradeRecord, error) {
	return f.trades, f.err
}

func (f *fakeTrades) ClosedTrades(context.Context) ([]domain.ClosedTrade, error) {
	return f.closed, f.err
}

type fakeQuotes struct {
	prices map[string]string
	dates  map[string]domain.Date
	asked  []string
}

func (f *fakeQuotes) Quotes(_ context.Context, tickers []string) domain.QuoteSet {
	f.asked = tickers
	set := domain.NewQuoteSet()
	for _, t := range tickers {
		p, ok := f.prices[t]
		if !ok {
			set.Missing = append(set.Missing, t)
			continue
		}
		q := domain.Quote{Ticker: t, Price: decimal.RequireFromString(p)}
		if d, ok := f.dates[t]; ok {
			q.EarningsDate = &d
		}
		set.Add(q)
	}
	return set
}

func trade(ticker, date, shares, cost string) domain.TradeRecord {
	d, err := domain.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return domain.TradeRecord{
		Ticker:    ticker,
		Date:      d,
		Shares:    decimal.RequireFromString(shares),
		CostShare: decimal.RequireFromString(cost),
	}
}

func TestPortfolioService_Report(t *testing.T) {
	source := &fakeTrades{trades: []domain.TradeRecord{
		trade("NU", "2024-01-10", "100", "8"),
		trade("TSM", "2024-02-01", "10", "100"),
		trade("NU", "2024-03-05", "50", "10"),
		trade("XYZ", "2024-01-01", "5", "20"),
	}}
	quotes := &fakeQuotes{
		prices: map[string]string{"NU": "12", "TSM": "150"},
		dates:  map[string]domain.Date{"TSM": domain.NewDate(2024, time.July, 18)},
	}
	sectors := domain.SectorMap{"NU": "Fintech", "TSM": "Semis"}

	svc := NewPortfolioService(source, quotes, sectors)
	report, err := svc.Report(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"NU", "TSM", "XYZ"}, quotes.asked)
	require.Len(t, report.Positions, 3)

	nu := report.Positions[0]
	assert.Equal(t, "150", nu.TotalShares.String())
	assert.Equal(t, "9", nu.AvgCostPerShare.String())
	assert.Equal(t, "1800", nu.TotalValue.String())

	tsm := report.Positions[1]
	require.NotNil(t, tsm.EarningsDate)
	assert.Equal(t, "2024-07-18", tsm.EarningsDate.String())

	xyz := report.Positions[2]
	assert.False(t, xyz.HasMarketData)
	assert.Nil(t, xyz.Sector)

	assert.Equal(t, []string{"XYZ"}, report.MissingPrices)
	assert.Equal(t, 1, report.Totals.Unpriced)
	assert.Len(t, report.Sectors, 2)
	assert.Equal(t, "NU", report.History[0].Ticker)
	assert.Equal(t, "2024-03-05", report.History[0].Date.String())
}

func TestPortfolioService_SourceError(t *testing.T) {
	svc := NewPortfolioService(&fakeTrades{err: errors.New("arquivo ausente")}, &fakeQuotes{}, nil)

	_, err := svc.Report(context.Background())
	assert.Error(t, err)

	_, err = svc.ClosedTrades(context.Background())
	assert.Error(t, err)
}

func TestPortfolioService_ClosedTrades(t *testing.T) {
	source := &fakeTrades{closed: []domain.ClosedTrade{{
		Ticker:      "CVS",
		EntryDate:   domain.NewDate(2023, time.January, 1),
		SellDate:    domain.NewDate(2023, time.January, 31),
		EntryPrice:  decimal.NewFromInt(100),
		SellPrice:   decimal.NewFromInt(120),
		ShareNumber: decimal.NewFromInt(10),
	}}}

	summaries, err := NewPortfolioService(source, &fakeQuotes{}, nil).ClosedTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	assert.InDelta(t, 20.0, float64(summaries[0].GainPct), 1e-9)
	assert.Equal(t, "200", summaries[0].RealizedGain.String())
	assert.Equal(t, 30, summaries[0].HoldingPeriodDays)
}

type fakeFundamentals struct {
	statements []domain.IncomeStatement
	peers      []string
	metrics    map[string]domain.KeyMetricsTTM
	ratios     []domain.RatioSnapshot
	ratiosErr  error
}

func (f *fakeFundamentals) IncomeStatements(context.Context, string, int) ([]domain.IncomeStatement, error) {
	if len(f.statements) == 0 {
		return nil, errors.New("sem dados")
	}
	return f.statements, nil
}

func (f *fakeFundamentals) KeyMetricsTTM(_ context.Context, symbol string) (domain.KeyMetricsTTM, error) {
	m, ok := f.metrics[symbol]
	if !ok {
		return domain.KeyMetricsTTM{}, errors.New("sem métricas")
	}
	return m, nil
}

func (f *fakeFundamentals) Ratios(context.Context, string, int) ([]domain.RatioSnapshot, error) {
	return f.ratios, f.ratiosErr
}

func (f *fakeFundamentals) Peers(context.Context, string) ([]string, error) {
	return f.peers, nil
}

func (f *fakeFundamentals) Statement(_ context.Context, kind, symbol string) (json.RawMessage, error) {
	return json.RawMessage(`{"kind":"` + kind + `","symbol":"` + symbol + `"}`), nil
}

func (f *fakeFundamentals) Profile(_ context.Context, symbol string) (domain.CompanyProfile, error) {
	return domain.CompanyProfile{Symbol: symbol, Sector: "Technology"}, nil
}

func ptr(v float64) *float64 { return &v }

func TestFundamentalsService_Profile(t *testing.T) {
	profile, err := NewFundamentalsService(&fakeFundamentals{}, 2).Profile(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", profile.Symbol)
	assert.Equal(t, "Technology", profile.Sector)
}

func TestValuationService_ScenarioFor(t *testing.T) {
	provider := &fakeFundamentals{statements: []domain.IncomeStatement{
		{CalendarYear: "2022", Revenue: 394328000000},
		{CalendarYear: "2023", Revenue: 383285000000},
	}}

	scenario, err := NewValuationService(provider).ScenarioFor(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", scenario.Symbol)
	assert.InDelta(t, 383.29, scenario.BaseRevenue, 0.006)
	assert.Equal(t, valuation.DefaultScenario().DiscountRate, scenario.DiscountRate)
	assert.Equal(t, valuation.DefaultProjectionYears, scenario.ProjectionYears)
}

func TestValuationService_Project(t *testing.T) {
	svc := NewValuationService(&fakeFundamentals{})

	result, err := svc.Project(context.Background(), valuation.DefaultScenario())
	require.NoError(t, err)
	assert.InDelta(t, 88.75, result.IntrinsicValuePerShare, 0.01)

	bad := valuation.DefaultScenario()
	bad.DiscountRate = 0.02
	_, err = svc.Project(context.Background(), bad)
	assert.ErrorIs(t, err, valuation.ErrDomain)
}

func TestFundamentalsService_Comparables(t *testing.T) {
	provider := &fakeFundamentals{
		peers: []string{"MSFT", "AAPL", "GOOG"},
		metrics: map[string]domain.KeyMetricsTTM{
			"AAPL": {PERatioTTM: ptr(31.26), PBRatioTTM: ptr(45.1)},
			"MSFT": {PERatioTTM: ptr(35.04)},
		},
		ratios: []domain.RatioSnapshot{
			{PriceEarningsRatio: ptr(24)},
			{PriceEarningsRatio: ptr(28)},
		},
	}

	result, err := NewFundamentalsService(provider, 2).Comparables(context.Background(), "aapl")
	require.NoError(t, err)

	require.Len(t, result.Peers, 2)
	assert.Equal(t, "AAPL", result.Peers[0].Symbol)
	assert.Equal(t, "MSFT", result.Peers[1].Symbol)
	require.NotNil(t, result.AveragePE)
	assert.Equal(t, 26.0, *result.AveragePE)
	require.NotNil(t, result.PEDelta)
	assert.Equal(t, 5.3, *result.PEDelta)
}

func TestFundamentalsService_ComparablesWithoutHistory(t *testing.T) {
	provider := &fakeFundamentals{
		peers:     []string{"MSFT"},
		metrics:   map[string]domain.KeyMetricsTTM{"AAPL": {PERatioTTM: ptr(30)}},
		ratiosErr: errors.New("limite excedido"),
	}

	result, err := NewFundamentalsService(provider, 2).Comparables(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Nil(t, result.AveragePE)
	assert.Nil(t, result.PEDelta)
	require.NotNil(t, result.CurrentPE)
}

func TestFundamentalsService_Growth(t *testing.T) {
	provider := &fakeFundamentals{statements: []domain.IncomeStatement{
		{CalendarYear: "2023", Revenue: 120, NetIncome: 30},
		{CalendarYear: "2022", Revenue: 100, NetIncome: 20},
	}}

	points, err := NewFundamentalsService(provider, 1).Growth(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2022", points[0].Year)
	assert.Nil(t, points[0].RevenueYoY)
	require.NotNil(t, points[1].RevenueYoY)
	assert.Equal(t, 20.0, *points[1].RevenueYoY)
	assert.Equal(t, 50.0, *points[1].NetIncomeYoY)
}

type fakeNews struct {
	limit int
}

func (f *fakeNews) News(_ context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	f.limit = limit
	return []domain.NewsArticle{
		{Title: symbol + " beats estimates", PublishedUTC: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}, nil
}

type constScorer float64

func (c constScorer) Compound(string) float64 { return float64(c) }

func TestSentimentService_Analyze(t *testing.T) {
	news := &fakeNews{}
	svc := NewSentimentService(news, sentiment.NewAnalyzer(constScorer(0.6)))

	report, err := svc.Analyze(context.Background(), "aapl", 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultNewsLimit, news.limit)
	assert.Equal(t, "AAPL", report.Symbol)
	assert.Equal(t, 1, report.Summary[domain.SentimentPositive])
}

package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/portfolio"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/metrics"
)

// TradeSource is where open and closed trades are kept: JSON exports or Postgres.
type TradeSource interface {
	Trades(ctx context.Context) ([]domain.TradeRecord, error)
	ClosedTrades(ctx context.Context) ([]domain.ClosedTrade, error)
}

// QuoteProvider fetches prices on a best-effort basis.
type QuoteProvider interface {
	Quotes(ctx context.Context, tickers []string) domain.QuoteSet
}

type PortfolioService struct {
	trades  TradeSource
	quotes  QuoteProvider
	sectors domain.SectorMap
	now     func() time.Time
}

func NewPortfolioService(trades TradeSource, quotes QuoteProvider, sectors domain.SectorMap) *PortfolioService {
	return &PortfolioService{
		trades:  trades,
		quotes:  quotes,
		sectors: sectors,
		now:     time.Now,
	}
}

// Report aggregates the open trades into positions priced at the latest quotes.
// Tickers without a quote are reported as unpriced and do not fail the report.
func (s *PortfolioService) Report(ctx context.Context) (*domain.PortfolioReport, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradesProcessingDuration.WithLabelValues("report"))

	trades, err := s.trades.Trades(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar trades: %w", err)
	}

	tickers := portfolio.Tickers(trades)
	quotes := s.quotes.Quotes(ctx, tickers)

	positions := portfolio.Aggregate(trades, quotes.Prices, s.sectors)
	portfolio.AttachEarningsDates(positions, quotes.EarningsDates)

	totals := portfolio.Totals(positions)
	metrics.PositionsComputed.Add(float64(len(positions)))
	metrics.UnpricedPositions.Set(float64(totals.Unpriced))

	if len(quotes.Missing) > 0 {
		logger.WithContext(ctx).Warn("posições sem cotação", zap.Strings("tickers", quotes.Missing))
	}

	return &domain.PortfolioReport{
		GeneratedAt:   s.now().UTC(),
		Positions:     positions,
		Sectors:       portfolio.SectorAllocation(positions),
		Totals:        totals,
		History:       portfolio.History(trades),
		MissingPrices: quotes.Missing,
	}, nil
}

func (s *PortfolioService) Positions(ctx context.Context) ([]domain.Position, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	return report.Positions, nil
}

func (s *PortfolioService) Sectors(ctx context.Context) ([]domain.SectorSlice, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	return report.Sectors, nil
}

// History lists the open trades most recent first. It needs no market data.
func (s *PortfolioService) History(ctx context.Context) ([]domain.TradeRecord, error) {
	trades, err := s.trades.Trades(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar trades: %w", err)
	}
	return portfolio.History(trades), nil
}

func (s *PortfolioService) ClosedTrades(ctx context.Context) ([]domain.ClosedTradeSummary, error) {
	closed, err := s.trades.ClosedTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar operações encerradas: %w", err)
	}
	return portfolio.SummarizeClosedTrades(closed), nil
}

// Tickers lists the distinct tickers held, in first-appearance order.
func (s *PortfolioService) Tickers(ctx context.Context) ([]string, error) {
	trades, err := s.trades.Trades(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar trades: %w", err)
	}
	return portfolio.Tickers(trades), nil
}

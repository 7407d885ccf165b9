package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/fundamentals"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

const (
	growthYears  = 10
	ratioHistory = 20
)

// FundamentalsProvider is the subset of the market-data client used for company analysis.
type FundamentalsProvider interface {
	IncomeProvider
	KeyMetricsTTM(ctx context.Context, symbol string) (domain.KeyMetricsTTM, error)
	Ratios(ctx context.Context, symbol string, limit int) ([]domain.RatioSnapshot, error)
	Peers(ctx context.Context, symbol string) ([]string, error)
	Statement(ctx context.Context, kind, symbol string) (json.RawMessage, error)
	Profile(ctx context.Context, symbol string) (domain.CompanyProfile, error)
}

type FundamentalsService struct {
	provider    FundamentalsProvider
	concurrency int
}

func NewFundamentalsService(provider FundamentalsProvider, concurrency int) *FundamentalsService {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &FundamentalsService{provider: provider, concurrency: concurrency}
}

func (s *FundamentalsService) Growth(ctx context.Context, symbol string) ([]domain.GrowthPoint, error) {
	statements, err := s.provider.IncomeStatements(ctx, domain.NormalizeTicker(symbol), growthYears)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar demonstrativos: %w", err)
	}
	return fundamentals.YoYChanges(statements), nil
}

// Comparables needs the peer list; metrics or P/E history missing for a symbol only
// narrow the table.
func (s *FundamentalsService) Comparables(ctx context.Context, symbol string) (*domain.Comparables, error) {
	target := domain.NormalizeTicker(symbol)
	log := logger.WithContext(ctx)

	peers, err := s.provider.Peers(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar pares: %w", err)
	}
	symbols := fundamentals.PeerSymbols(target, peers)

	var (
		mu      sync.Mutex
		ttm     = make(map[string]domain.KeyMetricsTTM, len(symbols))
		history []domain.RatioSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			m, err := s.provider.KeyMetricsTTM(gctx, sym)
			if err != nil {
				log.Warn("métricas indisponíveis", zap.String("symbol", sym), zap.Error(err))
				return nil
			}
			mu.Lock()
			ttm[sym] = m
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		ratios, err := s.provider.Ratios(gctx, target, ratioHistory)
		if err != nil {
			log.Warn("histórico de P/L indisponível", zap.String("symbol", target), zap.Error(err))
			return nil
		}
		history = ratios
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := fundamentals.Comparables(target, symbols, ttm, history)
	return &result, nil
}

func (s *FundamentalsService) Statement(ctx context.Context, kind, symbol string) (json.RawMessage, error) {
	return s.provider.Statement(ctx, kind, domain.NormalizeTicker(symbol))
}

func (s *FundamentalsService) Profile(ctx context.Context, symbol string) (domain.CompanyProfile, error) {
	return s.provider.Profile(ctx, domain.NormalizeTicker(symbol))
}

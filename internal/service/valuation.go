package service

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/valuation"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/metrics"
)

// IncomeProvider supplies reported income statements.
type IncomeProvider interface {
	IncomeStatements(ctx context.Context, symbol string, limit int) ([]domain.IncomeStatement, error)
}

const billion = 1e9

type ValuationService struct {
	income IncomeProvider
}

func NewValuationService(income IncomeProvider) *ValuationService {
	return &ValuationService{income: income}
}

func (s *ValuationService) Project(ctx context.Context, scenario domain.DCFScenario) (*domain.DCFResult, error) {
	result, err := valuation.Project(scenario)
	metrics.RecordValuation(err)
	if err != nil {
		logger.WithContext(ctx).Debug("cenário rejeitado", zap.String("symbol", scenario.Symbol), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// ScenarioFor starts from the default scenario with the base revenue, in billions,
// taken from the most recent reported fiscal year of symbol.
func (s *ValuationService) ScenarioFor(ctx context.Context, symbol string) (domain.DCFScenario, error) {
	scenario := valuation.DefaultScenario()
	scenario.Symbol = domain.NormalizeTicker(symbol)

	statements, err := s.income.IncomeStatements(ctx, scenario.Symbol, 1)
	if err != nil {
		return scenario, fmt.Errorf("erro ao buscar receita de %s: %w", scenario.Symbol, err)
	}
	if len(statements) == 0 {
		return scenario, fmt.Errorf("nenhum demonstrativo para %s", scenario.Symbol)
	}

	latest := statements[0]
	for _, st := range statements[1:] {
		if st.FiscalYear() > latest.FiscalYear() {
			latest = st
		}
	}

	scenario.BaseRevenue = math.Round(latest.Revenue/billion*100) / 100
	return scenario, nil
}

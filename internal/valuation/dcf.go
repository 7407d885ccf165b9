// Package valuation implements the discounted cash flow projection used by the valuation page.
package valuation

import (
	"errors"
	"fmt"
	"math"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
)

const DefaultProjectionYears = 5

// ErrDomain marks a scenario for which the valuation is mathematically meaningless.
var ErrDomain = errors.New("cenário DCF inválido")

// DefaultScenario mirrors the initial slider positions of the dashboard.
func DefaultScenario() domain.DCFScenario {
	return domain.DCFScenario{
		BaseRevenue:        400,
		RevenueGrowthRate:  0.10,
		NetMargin:          0.20,
		TerminalGrowthRate: 0.02,
		DiscountRate:       0.10,
		SharesOutstanding:  16,
		ProjectionYears:    DefaultProjectionYears,
	}
}

// Validate rejects scenarios that would produce a non-finite or misleading value.
func Validate(s domain.DCFScenario) error {
	if s.DiscountRate <= s.TerminalGrowthRate {
		return fmt.Errorf("%w: taxa de desconto (%.4f) deve ser maior que o crescimento terminal (%.4f)",
			ErrDomain, s.DiscountRate, s.TerminalGrowthRate)
	}
	if s.SharesOutstanding <= 0 {
		return fmt.Errorf("%w: ações em circulação devem ser positivas (%.4f)", ErrDomain, s.SharesOutstanding)
	}
	if s.ProjectionYears < 0 {
		return fmt.Errorf("%w: horizonte de projeção negativo (%d)", ErrDomain, s.ProjectionYears)
	}
	if s.DiscountRate <= -1 {
		return fmt.Errorf("%w: taxa de desconto deve ser maior que -100%%", ErrDomain)
	}
	for _, v := range []float64{s.BaseRevenue, s.RevenueGrowthRate, s.NetMargin, s.TerminalGrowthRate, s.DiscountRate, s.SharesOutstanding} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parâmetro não finito", ErrDomain)
		}
	}
	return nil
}

// Project compounds revenue forward, discounts the free cash flows and adds a
// Gordon growth terminal value.
func Project(s domain.DCFScenario) (*domain.DCFResult, error) {
	if s.ProjectionYears == 0 {
		s.ProjectionYears = DefaultProjectionYears
	}
	if err := Validate(s); err != nil {
		return nil, err
	}

	result := &domain.DCFResult{
		Scenario: s,
		Yearly:   make([]domain.YearProjection, 0, s.ProjectionYears),
	}

	var pvSum float64
	for i := 1; i <= s.ProjectionYears; i++ {
		revenue := s.BaseRevenue * math.Pow(1+s.RevenueGrowthRate, float64(i))
		fcf := revenue * s.NetMargin
		factor := math.Pow(1+s.DiscountRate, float64(i))
		pv := fcf / factor

		pvSum += pv
		result.Yearly = append(result.Yearly, domain.YearProjection{
			Year:           i,
			Revenue:        revenue,
			FreeCashFlow:   fcf,
			DiscountFactor: factor,
			PresentValue:   pv,
		})
	}

	last := result.Yearly[len(result.Yearly)-1]
	result.TerminalValue = last.FreeCashFlow * (1 + s.TerminalGrowthRate) / (s.DiscountRate - s.TerminalGrowthRate)
	result.PresentTerminalValue = result.TerminalValue / last.DiscountFactor
	result.EnterpriseValue = pvSum + result.PresentTerminalValue
	result.IntrinsicValuePerShare = result.EnterpriseValue / s.SharesOutstanding

	return result, nil
}

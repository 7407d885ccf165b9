// Package fundamentals reshapes statement and ratio payloads for the company analysis views.
package fundamentals

import (
	"math"
	"sort"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
)

// YoYChanges orders statements by fiscal year (oldest first) and computes the
// year over year % change of revenue and net income, rounded to 2 decimals.
// The first year and years following a zero value have no change.
// Cost of revenue is also given as a whole % of revenue, absent when revenue is zero.
func YoYChanges(statements []domain.IncomeStatement) []domain.GrowthPoint {
	sorted := make([]domain.IncomeStatement, len(statements))
	copy(sorted, statements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FiscalYear() < sorted[j].FiscalYear()
	})

	points := make([]domain.GrowthPoint, 0, len(sorted))
	for i, s := range sorted {
		point := domain.GrowthPoint{
			Year:             s.FiscalYear(),
			Revenue:          s.Revenue,
			CostOfRevenue:    s.CostOfRevenue,
			NetIncome:        s.NetIncome,
			CostOfRevenuePct: shareOf(s.CostOfRevenue, s.Revenue),
		}
		if i > 0 {
			prev := sorted[i-1]
			point.RevenueYoY = pctChange(prev.Revenue, s.Revenue)
			point.NetIncomeYoY = pctChange(prev.NetIncome, s.NetIncome)
		}
		points = append(points, point)
	}

	return points
}

func pctChange(prev, cur float64) *float64 {
	if prev == 0 {
		return nil
	}
	v := round((cur-prev)/prev*100, 2)
	return &v
}

func shareOf(part, whole float64) *float64 {
	if whole == 0 {
		return nil
	}
	v := round(part/whole*100, 0)
	return &v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

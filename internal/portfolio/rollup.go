package portfolio

import (
	"sort"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/shopspring/decimal"
)

// SectorAllocation sums value and cost per sector. Positions without a sector are left out.
func SectorAllocation(positions []domain.Position) []domain.SectorSlice {
	index := make(map[string]int)
	slices := make([]domain.SectorSlice, 0)
	mappedValue := decimal.Zero

	for _, p := range positions {
		if p.Sector == nil {
			continue
		}

		i, ok := index[*p.Sector]
		if !ok {
			i = len(slices)
			index[*p.Sector] = i
			slices = append(slices, domain.SectorSlice{Sector: *p.Sector})
		}

		s := &slices[i]
		s.Tickers = append(s.Tickers, p.Ticker)
		s.TotalValue = s.TotalValue.Add(p.TotalValue)
		s.TotalCost = s.TotalCost.Add(p.TotalCost)
		mappedValue = mappedValue.Add(p.TotalValue)
	}

	for i := range slices {
		slices[i].ValueShare = domain.PercentOf(slices[i].TotalValue, mappedValue)
	}

	return slices
}

func Totals(positions []domain.Position) domain.PortfolioTotals {
	totals := domain.PortfolioTotals{Positions: len(positions)}

	for _, p := range positions {
		if !p.HasMarketData {
			totals.Unpriced++
		}
		totals.TotalValue = totals.TotalValue.Add(p.TotalValue)
		totals.TotalCost = totals.TotalCost.Add(p.TotalCost)
	}

	totals.GainAbs = totals.TotalValue.Sub(totals.TotalCost)
	totals.GainPct = domain.PercentOf(totals.GainAbs, totals.TotalCost)
	totals.DegenerateCostBasis = totals.TotalCost.IsZero()

	return totals
}

// History returns a copy of trades sorted by date, most recent first.
func History(trades []domain.TradeRecord) []domain.TradeRecord {
	history := make([]domain.TradeRecord, len(trades))
	copy(history, trades)

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Date.After(history[j].Date.Time)
	})

	return history
}

// SummarizeClosedTrades derives gain and holding period for each closed trade, keeping input order.
func SummarizeClosedTrades(trades []domain.ClosedTrade) []domain.ClosedTradeSummary {
	summaries := make([]domain.ClosedTradeSummary, 0, len(trades))
	for _, t := range trades {
		summaries = append(summaries, domain.ClosedTradeSummary{
			ClosedTrade:       t,
			GainPct:           t.GainPct(),
			RealizedGain:      t.RealizedGain(),
			HoldingPeriodDays: t.HoldingPeriodDays(),
		})
	}
	return summaries
}

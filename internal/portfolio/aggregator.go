// Package portfolio holds the pure position math: grouping trades by ticker,
// joining market prices and deriving gain/loss. Nothing here performs I/O.
package portfolio

import (
	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/shopspring/decimal"
)

type group struct {
	ticker    string
	company   string
	shares    decimal.Decimal
	costSum   decimal.Decimal
	costCount int64
}

// Aggregate builds one Position per distinct ticker, in order of first appearance.
//
// The average cost is the unweighted mean of the per-trade cost_share values,
// not the shares-weighted average cost. Missing prices become 0 with
// HasMarketData unset; a zero cost basis yields an undefined GainPct with
// DegenerateCostBasis set.
func Aggregate(trades []domain.TradeRecord, prices map[string]decimal.Decimal, sectors domain.SectorMap) []domain.Position {
	index := make(map[string]int)
	groups := make([]*group, 0)

	for _, trade := range trades {
		i, ok := index[trade.Ticker]
		if !ok {
			i = len(groups)
			index[trade.Ticker] = i
			groups = append(groups, &group{
				ticker:  trade.Ticker,
				company: trade.Company,
			})
		}

		g := groups[i]
		g.shares = g.shares.Add(trade.Shares)
		g.costSum = g.costSum.Add(trade.CostShare)
		g.costCount++
	}

	positions := make([]domain.Position, 0, len(groups))
	for _, g := range groups {
		positions = append(positions, g.position(prices, sectors))
	}

	return positions
}

func (g *group) position(prices map[string]decimal.Decimal, sectors domain.SectorMap) domain.Position {
	avgCost := g.costSum.Div(decimal.NewFromInt(g.costCount))

	price, hasPrice := prices[g.ticker]
	if !hasPrice {
		price = decimal.Zero
	}

	totalValue := g.shares.Mul(price)
	totalCost := g.shares.Mul(avgCost)
	gainAbs := totalValue.Sub(totalCost)

	return domain.Position{
		Ticker:              g.ticker,
		Company:             g.company,
		TradeCount:          int(g.costCount),
		TotalShares:         g.shares,
		AvgCostPerShare:     avgCost,
		MarketPrice:         price,
		HasMarketData:       hasPrice,
		TotalValue:          totalValue,
		TotalCost:           totalCost,
		GainAbs:             gainAbs,
		GainPct:             domain.PercentOf(gainAbs, totalCost),
		DegenerateCostBasis: totalCost.IsZero(),
		Sector:              sectors.Lookup(g.ticker),
	}
}

// AttachEarningsDates annotates positions in place; tickers without a date keep a nil EarningsDate.
func AttachEarningsDates(positions []domain.Position, dates map[string]domain.Date) {
	for i := range positions {
		if d, ok := dates[positions[i].Ticker]; ok {
			d := d
			positions[i].EarningsDate = &d
		}
	}
}

// Tickers returns the distinct tickers of trades in first-appearance order.
func Tickers(trades []domain.TradeRecord) []string {
	seen := make(map[string]struct{}, len(trades))
	tickers := make([]string, 0)
	for _, t := range trades {
		if _, ok := seen[t.Ticker]; ok {
			continue
		}
		seen[t.Ticker] = struct{}{}
		tickers = append(tickers, t.Ticker)
	}
	return tickers
}

package domain

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Percent is a percentage value (20 means 20%). NaN marks an undefined value and
// is encoded as JSON null so it never reaches a chart as a number.
type Percent float64

func UndefinedPercent() Percent {
	return Percent(math.NaN())
}

func (p Percent) IsDefined() bool {
	f := float64(p)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.IsDefined() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(p))
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = UndefinedPercent()
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*p = Percent(f)
	return nil
}

// PercentOf returns part/whole*100, undefined when whole is zero.
func PercentOf(part, whole decimal.Decimal) Percent {
	if whole.IsZero() {
		return UndefinedPercent()
	}
	return Percent(part.Div(whole).Mul(hundred).InexactFloat64())
}

// SectorMap classifies tickers; tickers absent from it are unclassified.
type SectorMap map[string]string

func (m SectorMap) Lookup(ticker string) *string {
	sector, ok := m[ticker]
	if !ok || sector == "" {
		return nil
	}
	return &sector
}

// Position is the aggregated holding in one ticker across all trades.
type Position struct {
	Ticker              string          `json:"ticker"`
	Company             string          `json:"company,omitempty"`
	TradeCount          int             `json:"trade_count"`
	TotalShares         decimal.Decimal `json:"total_shares"`
	AvgCostPerShare     decimal.Decimal `json:"avg_cost_per_share"`
	MarketPrice         decimal.Decimal `json:"market_price"`
	HasMarketData       bool            `json:"has_market_data"`
	TotalValue          decimal.Decimal `json:"total_value"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	GainAbs             decimal.Decimal `json:"gain_abs"`
	GainPct             Percent         `json:"gain_pct"`
	DegenerateCostBasis bool            `json:"degenerate_cost_basis"`
	Sector              *string         `json:"sector,omitempty"`
	EarningsDate        *Date           `json:"earnings_date,omitempty"`
}

type SectorSlice struct {
	Sector     string          `json:"sector"`
	Tickers    []string        `json:"tickers"`
	TotalValue decimal.Decimal `json:"total_value"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	ValueShare Percent         `json:"value_share"`
}

type PortfolioTotals struct {
	Positions           int             `json:"positions"`
	Unpriced            int             `json:"unpriced"`
	TotalValue          decimal.Decimal `json:"total_value"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	GainAbs             decimal.Decimal `json:"gain_abs"`
	GainPct             Percent         `json:"gain_pct"`
	DegenerateCostBasis bool            `json:"degenerate_cost_basis"`
}

type PortfolioReport struct {
	GeneratedAt   time.Time       `json:"generated_at"`
	Positions     []Position      `json:"positions"`
	Sectors       []SectorSlice   `json:"sectors"`
	Totals        PortfolioTotals `json:"totals"`
	History       []TradeRecord   `json:"history"`
	MissingPrices []string        `json:"missing_prices,omitempty"`
}

// Quote is the latest market data known for a ticker.
type Quote struct {
	Ticker       string          `json:"ticker"`
	Price        decimal.Decimal `json:"price"`
	EarningsDate *Date           `json:"earnings_date,omitempty"`
	FetchedAt    time.Time       `json:"fetched_at"`
}

// QuoteSet is the result of a best-effort quote fetch: tickers that failed are
// listed in Missing and absent from Prices.
type QuoteSet struct {
	Prices        map[string]decimal.Decimal `json:"prices"`
	EarningsDates map[string]Date            `json:"earnings_dates"`
	Missing       []string                   `json:"missing,omitempty"`
}

func NewQuoteSet() QuoteSet {
	return QuoteSet{
		Prices:        make(map[string]decimal.Decimal),
		EarningsDates: make(map[string]Date),
	}
}

func (qs QuoteSet) Add(q Quote) {
	qs.Prices[q.Ticker] = q.Price
	if q.EarningsDate != nil {
		qs.EarningsDates[q.Ticker] = *q.EarningsDate
	}
}

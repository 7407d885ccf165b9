package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/valuation"
)

func TestMoney(t *testing.T) {
	assert.Equal(t, "$1,800.00", Money(decimal.NewFromInt(1800), "USD"))
	assert.Equal(t, "$8.76", Money(decimal.RequireFromString("8.755"), "USD"))
	assert.Equal(t, "-$12.50", Money(decimal.RequireFromString("-12.5"), "USD"))
	assert.Equal(t, "3.14", Money(decimal.RequireFromString("3.14159"), "???"))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "12.35%", Percent(domain.Percent(12.346)))
	assert.Equal(t, "n/a", Percent(domain.UndefinedPercent()))
}

func TestWriter_Portfolio(t *testing.T) {
	fintech := "Fintech"
	earnings := domain.NewDate(2024, time.August, 13)
	r := &domain.PortfolioReport{
		GeneratedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Positions: []domain.Position{
			{
				Ticker: "NU", TotalShares: decimal.NewFromInt(150), AvgCostPerShare: decimal.NewFromInt(9),
				MarketPrice: decimal.NewFromInt(12), HasMarketData: true, TotalValue: decimal.NewFromInt(1800),
				GainAbs: decimal.NewFromInt(450), GainPct: 33.33, Sector: &fintech, EarningsDate: &earnings,
			},
			{Ticker: "XYZ", TotalShares: decimal.NewFromInt(5), GainPct: domain.UndefinedPercent()},
		},
		Sectors: []domain.SectorSlice{
			{Sector: "Fintech", Tickers: []string{"NU"}, TotalValue: decimal.NewFromInt(1800), ValueShare: 100},
		},
		Totals:        domain.PortfolioTotals{Positions: 2, Unpriced: 1, TotalValue: decimal.NewFromInt(1800)},
		MissingPrices: []string{"XYZ"},
	}
	closed := []domain.ClosedTradeSummary{{
		ClosedTrade:       domain.ClosedTrade{Ticker: "CVS", EntryDate: domain.NewDate(2023, 1, 1), SellDate: domain.NewDate(2023, 1, 31)},
		GainPct:           20,
		RealizedGain:      decimal.NewFromInt(200),
		HoldingPeriodDays: 30,
	}}

	md := NewWriter("usd").Portfolio(r, closed)

	assert.Contains(t, md, "| NU | Fintech | 150 | $9.00 | $12.00 | $1,800.00 | $450.00 | 33.33% | 2024-08-13 |")
	assert.Contains(t, md, "| XYZ | - | 5 |")
	assert.Contains(t, md, "sem cotação")
	assert.Contains(t, md, "| Fintech | NU | $1,800.00 | 100.00% |")
	assert.Contains(t, md, "- Sem cotação: XYZ")
	assert.Contains(t, md, "| CVS | 2023-01-01 | 2023-01-31 | 30 | $200.00 | 20.00% |")
}

func TestWriter_DCF(t *testing.T) {
	result, err := valuation.Project(valuation.DefaultScenario())
	require.NoError(t, err)

	md := NewWriter("").DCF(result)

	assert.Contains(t, md, "| 1 | 440.00 | 88.00 | 1.1000 | 80.00 |")
	assert.Contains(t, md, "**$88.75**")
}

func TestRender(t *testing.T) {
	out, err := Render("# Portfolio\n\n- item", 80)
	require.NoError(t, err)
	assert.Contains(t, out, "Portfolio")
}

func TestWriter_Sections(t *testing.T) {
	w := NewWriter("")

	positions := w.Positions([]domain.Position{{Ticker: "TSM", TotalShares: decimal.NewFromInt(2), GainPct: domain.UndefinedPercent()}})
	assert.True(t, strings.HasPrefix(positions, "## Posições"))
	assert.Contains(t, positions, "| TSM | - | 2 |")
	assert.NotContains(t, positions, "## Totais")

	closed := w.Closed(nil)
	assert.Equal(t, "## Operações encerradas\n\n| Ticker | Entrada | Saída | Dias | Resultado | Ganho % |\n|---|---|---|---:|---:|---:|\n", closed)
}

package report

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
)

const DefaultCurrency = money.USD

// Money formats amount in the display convention of currency, rounded to its minor unit.
// Unknown currency codes fall back to a plain two-decimal number.
func Money(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2)
	}

	minor := amount.Mul(decimal.New(1, int32(cur.Fraction))).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

func Percent(p domain.Percent) string {
	if !p.IsDefined() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", float64(p))
}

type Writer struct {
	currency string
}

func NewWriter(currency string) *Writer {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Writer{currency: strings.ToUpper(currency)}
}

// Portfolio renders positions, sector allocation, totals and closed trades as markdown.
func (w *Writer) Portfolio(r *domain.PortfolioReport, closed []domain.ClosedTradeSummary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Portfolio\n\n_Gerado em %s_\n\n", r.GeneratedAt.Format("2006-01-02 15:04 MST"))

	w.writePositions(&sb, r.Positions)

	if len(r.Sectors) > 0 {
		sb.WriteString("\n## Setores\n\n| Setor | Tickers | Valor | Participação |\n|---|---|---:|---:|\n")
		for _, s := range r.Sectors {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
				s.Sector, strings.Join(s.Tickers, ", "), w.money(s.TotalValue), Percent(s.ValueShare))
		}
	}

	t := r.Totals
	sb.WriteString("\n## Totais\n\n")
	fmt.Fprintf(&sb, "- Valor de mercado: **%s**\n", w.money(t.TotalValue))
	fmt.Fprintf(&sb, "- Custo: %s\n", w.money(t.TotalCost))
	fmt.Fprintf(&sb, "- Ganho: **%s** (%s)\n", w.money(t.GainAbs), Percent(t.GainPct))
	if t.Unpriced > 0 {
		fmt.Fprintf(&sb, "- Sem cotação: %s\n", strings.Join(r.MissingPrices, ", "))
	}

	if len(closed) > 0 {
		sb.WriteString("\n")
		w.writeClosed(&sb, closed)
	}

	return sb.String()
}

// Positions renders only the positions table.
func (w *Writer) Positions(positions []domain.Position) string {
	var sb strings.Builder
	w.writePositions(&sb, positions)
	return sb.String()
}

// Closed renders only the closed trades table.
func (w *Writer) Closed(closed []domain.ClosedTradeSummary) string {
	var sb strings.Builder
	w.writeClosed(&sb, closed)
	return sb.String()
}

func (w *Writer) writePositions(sb *strings.Builder, positions []domain.Position) {
	sb.WriteString("## Posições\n\n")
	sb.WriteString("| Ticker | Setor | Ações | Custo médio | Preço | Valor | Ganho | Ganho % | Próx. resultado |\n")
	sb.WriteString("|---|---|---:|---:|---:|---:|---:|---:|---|\n")
	for _, p := range positions {
		sector := "-"
		if p.Sector != nil {
			sector = *p.Sector
		}
		price := w.money(p.MarketPrice)
		if !p.HasMarketData {
			price = "sem cotação"
		}
		earnings := "-"
		if p.EarningsDate != nil {
			earnings = p.EarningsDate.String()
		}
		fmt.Fprintf(sb, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			p.Ticker, sector, p.TotalShares.String(), w.money(p.AvgCostPerShare), price,
			w.money(p.TotalValue), w.money(p.GainAbs), Percent(p.GainPct), earnings)
	}
}

func (w *Writer) writeClosed(sb *strings.Builder, closed []domain.ClosedTradeSummary) {
	sb.WriteString("## Operações encerradas\n\n| Ticker | Entrada | Saída | Dias | Resultado | Ganho % |\n|---|---|---|---:|---:|---:|\n")
	for _, c := range closed {
		fmt.Fprintf(sb, "| %s | %s | %s | %d | %s | %s |\n",
			c.Ticker, c.EntryDate.String(), c.SellDate.String(), c.HoldingPeriodDays,
			w.money(c.RealizedGain), Percent(c.GainPct))
	}
}

// DCF renders the projection table of a valuation.
func (w *Writer) DCF(r *domain.DCFResult) string {
	var sb strings.Builder

	title := "DCF"
	if r.Scenario.Symbol != "" {
		title += " " + r.Scenario.Symbol
	}
	fmt.Fprintf(&sb, "# %s\n\n| Ano | Receita | Lucro | Fator | Valor presente |\n|---:|---:|---:|---:|---:|\n", title)
	for _, y := range r.Yearly {
		fmt.Fprintf(&sb, "| %d | %.2f | %.2f | %.4f | %.2f |\n", y.Year, y.Revenue, y.FreeCashFlow, y.DiscountFactor, y.PresentValue)
	}

	fmt.Fprintf(&sb, "\n- Valor terminal: %.2f (presente %.2f)\n", r.TerminalValue, r.PresentTerminalValue)
	fmt.Fprintf(&sb, "- Enterprise value: %.2f\n", r.EnterpriseValue)
	fmt.Fprintf(&sb, "- Valor intrínseco por ação: **%s**\n", w.money(decimal.NewFromFloat(r.IntrinsicValuePerShare)))

	return sb.String()
}

func (w *Writer) money(amount decimal.Decimal) string {
	return Money(amount, w.currency)
}

// Render formats markdown for the terminal.
func Render(markdown string, width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(markdown)
}

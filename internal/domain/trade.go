package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// Date is a calendar day in UTC, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts YYYY-MM-DD and, for exports that carry a time, RFC3339.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("data inválida %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// DaysUntil returns the whole days from d to o, negative when o precedes d.
func (d Date) DaysUntil(o Date) int {
	return int(math.Round(o.Sub(d.Time).Hours() / 24))
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormalizeTicker is applied by every trade source so grouping can rely on exact matches.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// TradeRecord is one executed buy.
type TradeRecord struct {
	ID        int64           `db:"id" json:"-"`
	Ticker    string          `db:"ticker" json:"ticker"`
	Company   string          `db:"company" json:"company"`
	Date      Date            `db:"trade_date" json:"date"`
	Shares    decimal.Decimal `db:"shares" json:"shares"`
	CostShare decimal.Decimal `db:"cost_share" json:"cost_share"`
}

// ClosedTrade is a position that was bought and later sold in full.
type ClosedTrade struct {
	ID          int64           `db:"id" json:"-"`
	Ticker      string          `db:"ticker" json:"ticker"`
	EntryDate   Date            `db:"entry_date" json:"entry_date"`
	SellDate    Date            `db:"sell_date" json:"sell_date"`
	EntryPrice  decimal.Decimal `db:"entry_price" json:"entry_price"`
	SellPrice   decimal.Decimal `db:"sell_price" json:"sell_price"`
	ShareNumber decimal.Decimal `db:"share_number" json:"share_number"`
}

// GainPct is defined as 0 when the entry price is not positive.
func (c ClosedTrade) GainPct() Percent {
	if !c.EntryPrice.IsPositive() {
		return 0
	}
	pct := c.SellPrice.Sub(c.EntryPrice).Div(c.EntryPrice).Mul(hundred)
	return Percent(pct.InexactFloat64())
}

func (c ClosedTrade) RealizedGain() decimal.Decimal {
	return c.SellPrice.Sub(c.EntryPrice).Mul(c.ShareNumber)
}

// HoldingPeriodDays is not guarded: a sell date before the entry yields a negative value.
func (c ClosedTrade) HoldingPeriodDays() int {
	return c.EntryDate.DaysUntil(c.SellDate)
}

type ClosedTradeSummary struct {
	ClosedTrade
	GainPct           Percent         `json:"gain_pct"`
	RealizedGain      decimal.Decimal `json:"realized_gain"`
	HoldingPeriodDays int             `json:"holding_period_days"`
}

var hundred = decimal.NewFromInt(100)

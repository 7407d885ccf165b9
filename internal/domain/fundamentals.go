package domain

import "time"

// IncomeStatement carries the fields consumed from the fundamentals API.
type IncomeStatement struct {
	Symbol          string  `json:"symbol"`
	Date            string  `json:"date"`
	CalendarYear    string  `json:"calendarYear"`
	Period          string  `json:"period"`
	Revenue         float64 `json:"revenue"`
	CostOfRevenue   float64 `json:"costOfRevenue"`
	GrossProfit     float64 `json:"grossProfit"`
	OperatingIncome float64 `json:"operatingIncome"`
	NetIncome       float64 `json:"netIncome"`
	EPS             float64 `json:"eps"`
}

// FiscalYear falls back to the statement date when calendarYear is missing.
func (s IncomeStatement) FiscalYear() string {
	if s.CalendarYear != "" {
		return s.CalendarYear
	}
	if len(s.Date) >= 4 {
		return s.Date[:4]
	}
	return s.Date
}

type GrowthPoint struct {
	Year             string   `json:"year"`
	Revenue          float64  `json:"revenue"`
	CostOfRevenue    float64  `json:"cost_of_revenue"`
	NetIncome        float64  `json:"net_income"`
	RevenueYoY       *float64 `json:"revenue_yoy_pct"`
	NetIncomeYoY     *float64 `json:"net_income_yoy_pct"`
	CostOfRevenuePct *float64 `json:"cost_of_revenue_pct"`
}

type KeyMetricsTTM struct {
	Symbol        string   `json:"symbol"`
	PERatioTTM    *float64 `json:"peRatioTTM"`
	PBRatioTTM    *float64 `json:"pbRatioTTM"`
	EVToEBITDATTM *float64 `json:"enterpriseValueOverEBITDATTM"`
	MarketCapTTM  *float64 `json:"marketCapTTM"`
}

type RatioSnapshot struct {
	Symbol             string   `json:"symbol"`
	Date               string   `json:"date"`
	PriceEarningsRatio *float64 `json:"priceEarningsRatio"`
}

type CompanyProfile struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	Sector      string  `json:"sector"`
	Industry    string  `json:"industry"`
	Price       float64 `json:"price"`
	Beta        float64 `json:"beta"`
	MarketCap   float64 `json:"mktCap"`
	Website     string  `json:"website"`
}

type PeerValuation struct {
	Symbol     string   `json:"symbol"`
	PE         *float64 `json:"pe_ttm"`
	PB         *float64 `json:"pb_ttm"`
	EVToEBITDA *float64 `json:"ev_to_ebitda_ttm"`
}

type Comparables struct {
	Symbol    string          `json:"symbol"`
	Peers     []PeerValuation `json:"peers"`
	CurrentPE *float64        `json:"current_pe"`
	AveragePE *float64        `json:"average_pe"`
	PEDelta   *float64        `json:"pe_delta"`
}

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "Positive"
	SentimentNeutral  SentimentLabel = "Neutral"
	SentimentNegative SentimentLabel = "Negative"
)

type NewsArticle struct {
	PublishedUTC time.Time `json:"published_utc"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ArticleURL   string    `json:"article_url"`
	Publisher    string    `json:"publisher"`
}

type ScoredArticle struct {
	NewsArticle
	Score float64        `json:"score"`
	Label SentimentLabel `json:"label"`
}

type SentimentReport struct {
	Symbol   string                 `json:"symbol"`
	Articles []ScoredArticle        `json:"articles"`
	Summary  map[SentimentLabel]int `json:"summary"`
}

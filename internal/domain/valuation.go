package domain

// DCFScenario holds the valuation assumptions. Rates are fractions (0.10 = 10%).
type DCFScenario struct {
	Symbol             string  `json:"symbol,omitempty"`
	BaseRevenue        float64 `json:"base_revenue"`
	RevenueGrowthRate  float64 `json:"revenue_growth_rate"`
	NetMargin          float64 `json:"net_margin"`
	TerminalGrowthRate float64 `json:"terminal_growth_rate"`
	DiscountRate       float64 `json:"discount_rate"`
	SharesOutstanding  float64 `json:"shares_outstanding"`
	ProjectionYears    int     `json:"projection_years"`
}

type YearProjection struct {
	Year           int     `json:"year"`
	Revenue        float64 `json:"revenue"`
	FreeCashFlow   float64 `json:"free_cash_flow"`
	DiscountFactor float64 `json:"discount_factor"`
	PresentValue   float64 `json:"present_value"`
}

type DCFResult struct {
	Scenario               DCFScenario      `json:"scenario"`
	Yearly                 []YearProjection `json:"yearly"`
	TerminalValue          float64          `json:"terminal_value"`
	PresentTerminalValue   float64          `json:"present_terminal_value"`
	EnterpriseValue        float64          `json:"enterprise_value"`
	IntrinsicValuePerShare float64          `json:"intrinsic_value_per_share"`
}

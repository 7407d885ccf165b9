package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/cache"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

const (
	ProviderFMP     = "fmp"
	ProviderPolygon = "polygon"

	defaultConcurrency = 4
)

type Config struct {
	FMPAPIKey       string
	FMPBaseURL      string
	FMPStableURL    string
	PolygonAPIKey   string
	PolygonBaseURL  string
	Timeout         time.Duration
	Concurrency     int
	QuoteTTL        time.Duration
	FundamentalsTTL time.Duration
}

type Client struct {
	cfg     Config
	fmp     *providerClient
	polygon *providerClient
	cache   cache.Store
	now     func() time.Time
	log     *zap.Logger
}

// NewClient builds the market-data client. store may be nil, in which case every call hits the provider.
func NewClient(cfg Config, store cache.Store) *Client {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.FMPBaseURL = strings.TrimRight(cfg.FMPBaseURL, "/")
	cfg.FMPStableURL = strings.TrimRight(cfg.FMPStableURL, "/")
	cfg.PolygonBaseURL = strings.TrimRight(cfg.PolygonBaseURL, "/")

	return &Client{
		cfg:     cfg,
		fmp:     newProviderClient(ProviderFMP, "apikey", cfg.FMPAPIKey, cfg.Timeout),
		polygon: newProviderClient(ProviderPolygon, "apiKey", cfg.PolygonAPIKey, cfg.Timeout),
		cache:   store,
		now:     time.Now,
		log:     logger.Named("marketdata"),
	}
}

type fmpQuote struct {
	Symbol               string              `json:"symbol"`
	Price                decimal.NullDecimal `json:"price"`
	EarningsAnnouncement string              `json:"earningsAnnouncement"`
}

func quoteKey(ticker string) string {
	return "quote:" + ticker
}

// Quote returns the latest price and next earnings date for one ticker, cached for QuoteTTL.
func (c *Client) Quote(ctx context.Context, ticker string) (domain.Quote, error) {
	ticker = domain.NormalizeTicker(ticker)

	quote, _, err := cache.GetOrFetch(ctx, c.cache, quoteKey(ticker), c.cfg.QuoteTTL, func(ctx context.Context) (domain.Quote, error) {
		return c.fetchQuote(ctx, ticker)
	})
	return quote, err
}

// fetchQuote always asks the provider. A null price is not a zero price.
func (c *Client) fetchQuote(ctx context.Context, ticker string) (domain.Quote, error) {
	var payload []fmpQuote
	if err := c.fmp.getJSON(ctx, "quote", c.cfg.FMPBaseURL+"/quote/"+url.PathEscape(ticker), nil, &payload); err != nil {
		return domain.Quote{}, err
	}
	if len(payload) == 0 || !payload[0].Price.Valid {
		return domain.Quote{}, fmt.Errorf("cotação de %s: %w", ticker, ErrNotFound)
	}

	q := domain.Quote{
		Ticker:    ticker,
		Price:     payload[0].Price.Decimal,
		FetchedAt: c.now().UTC(),
	}
	if date, ok := parseEarningsDate(payload[0].EarningsAnnouncement); ok {
		q.EarningsDate = &date
	}
	return q, nil
}

// Quotes fetches every ticker concurrently. It never fails: tickers whose fetch
// failed are absent from Prices and listed in Missing, in input order.
func (c *Client) Quotes(ctx context.Context, tickers []string) domain.QuoteSet {
	return c.collectQuotes(ctx, tickers, c.Quote)
}

// RefreshQuotes fetches tickers from the provider, skipping the cache read, and
// overwrites the cached quote of each ticker that came back. A failed fetch leaves
// the last cached quote in place.
func (c *Client) RefreshQuotes(ctx context.Context, tickers []string) domain.QuoteSet {
	return c.collectQuotes(ctx, tickers, func(ctx context.Context, ticker string) (domain.Quote, error) {
		q, err := c.fetchQuote(ctx, ticker)
		if err != nil || c.cache == nil {
			return q, err
		}
		if err := c.cache.Set(ctx, quoteKey(ticker), q, c.cfg.QuoteTTL); err != nil {
			c.log.Warn("erro ao gravar cotação", zap.String("ticker", ticker), zap.Error(err))
		}
		return q, nil
	})
}

func (c *Client) collectQuotes(ctx context.Context, tickers []string, fetch func(context.Context, string) (domain.Quote, error)) domain.QuoteSet {
	set := domain.NewQuoteSet()
	failed := make([]bool, len(tickers))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Concurrency)

	for i, ticker := range tickers {
		i, ticker := i, domain.NormalizeTicker(ticker)
		g.Go(func() error {
			q, err := fetch(ctx, ticker)
			if err != nil {
				logger.WithContext(ctx).Warn("cotação indisponível", zap.String("ticker", ticker), zap.Error(err))
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[i] = true
				return nil
			}
			set.Add(q)
			return nil
		})
	}
	_ = g.Wait()

	for i, ticker := range tickers {
		if failed[i] {
			set.Missing = append(set.Missing, domain.NormalizeTicker(ticker))
		}
	}
	return set
}

func parseEarningsDate(raw string) (domain.Date, bool) {
	if len(raw) < len(domain.DateLayout) {
		return domain.Date{}, false
	}
	date, err := domain.ParseDate(raw[:len(domain.DateLayout)])
	if err != nil {
		return domain.Date{}, false
	}
	return date, true
}

func (c *Client) IncomeStatements(ctx context.Context, symbol string, limit int) ([]domain.IncomeStatement, error) {
	symbol = domain.NormalizeTicker(symbol)
	key := fmt.Sprintf("fmp:income-statement:%s:%d", symbol, limit)

	statements, _, err := cache.GetOrFetch(ctx, c.cache, key, c.cfg.FundamentalsTTL, func(ctx context.Context) ([]domain.IncomeStatement, error) {
		var payload []domain.IncomeStatement
		if err := c.fmp.getJSON(ctx, "income-statement", c.cfg.FMPBaseURL+"/income-statement/"+url.PathEscape(symbol), limitQuery(limit), &payload); err != nil {
			return nil, err
		}
		if len(payload) == 0 {
			return nil, fmt.Errorf("demonstrativos de %s: %w", symbol, ErrNotFound)
		}
		return payload, nil
	})
	return statements, err
}

func (c *Client) KeyMetricsTTM(ctx context.Context, symbol string) (domain.KeyMetricsTTM, error) {
	symbol = domain.NormalizeTicker(symbol)

	metrics, _, err := cache.GetOrFetch(ctx, c.cache, "fmp:key-metrics-ttm:"+symbol, c.cfg.FundamentalsTTL, func(ctx context.Context) (domain.KeyMetricsTTM, error) {
		var payload []domain.KeyMetricsTTM
		if err := c.fmp.getJSON(ctx, "key-metrics-ttm", c.cfg.FMPBaseURL+"/key-metrics-ttm/"+url.PathEscape(symbol), nil, &payload); err != nil {
			return domain.KeyMetricsTTM{}, err
		}
		if len(payload) == 0 {
			return domain.KeyMetricsTTM{}, fmt.Errorf("métricas de %s: %w", symbol, ErrNotFound)
		}
		m := payload[0]
		m.Symbol = symbol
		return m, nil
	})
	return metrics, err
}

func (c *Client) Ratios(ctx context.Context, symbol string, limit int) ([]domain.RatioSnapshot, error) {
	symbol = domain.NormalizeTicker(symbol)
	key := fmt.Sprintf("fmp:ratios:%s:%d", symbol, limit)

	ratios, _, err := cache.GetOrFetch(ctx, c.cache, key, c.cfg.FundamentalsTTL, func(ctx context.Context) ([]domain.RatioSnapshot, error) {
		var payload []domain.RatioSnapshot
		if err := c.fmp.getJSON(ctx, "ratios", c.cfg.FMPBaseURL+"/ratios/"+url.PathEscape(symbol), limitQuery(limit), &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
	return ratios, err
}

// Peers returns the peer symbols reported for symbol as-is. fundamentals.PeerSymbols picks from them.
func (c *Client) Peers(ctx context.Context, symbol string) ([]string, error) {
	symbol = domain.NormalizeTicker(symbol)

	peers, _, err := cache.GetOrFetch(ctx, c.cache, "fmp:stock-peers:"+symbol, c.cfg.FundamentalsTTL, func(ctx context.Context) ([]string, error) {
		var payload []struct {
			Symbol string `json:"symbol"`
		}
		q := url.Values{}
		q.Set("symbol", symbol)
		if err := c.fmp.getJSON(ctx, "stock-peers", c.cfg.FMPStableURL+"/stock-peers", q, &payload); err != nil {
			return nil, err
		}
		if len(payload) == 0 {
			return nil, fmt.Errorf("pares de %s: %w", symbol, ErrNotFound)
		}

		symbols := make([]string, 0, len(payload))
		for _, p := range payload {
			symbols = append(symbols, p.Symbol)
		}
		return symbols, nil
	})
	return peers, err
}

func (c *Client) Profile(ctx context.Context, symbol string) (domain.CompanyProfile, error) {
	symbol = domain.NormalizeTicker(symbol)

	profile, _, err := cache.GetOrFetch(ctx, c.cache, "fmp:profile:"+symbol, c.cfg.FundamentalsTTL, func(ctx context.Context) (domain.CompanyProfile, error) {
		var payload []domain.CompanyProfile
		if err := c.fmp.getJSON(ctx, "profile", c.cfg.FMPBaseURL+"/profile/"+url.PathEscape(symbol), nil, &payload); err != nil {
			return domain.CompanyProfile{}, err
		}
		if len(payload) == 0 {
			return domain.CompanyProfile{}, fmt.Errorf("perfil de %s: %w", symbol, ErrNotFound)
		}
		return payload[0], nil
	})
	return profile, err
}

var statementKinds = map[string]bool{
	"income-statement":                          true,
	"balance-sheet-statement":                   true,
	"cash-flow-statement":                       true,
	"income-statement-growth":                   true,
	"balance-sheet-statement-growth":            true,
	"cash-flow-statement-growth":                true,
	"ratios-ttm":                                true,
	"ratios":                                    true,
	"financial-growth":                          true,
	"quote":                                     true,
	"rating":                                    true,
	"enterprise-values":                         true,
	"key-metrics-ttm":                           true,
	"key-metrics":                               true,
	"discounted-cash-flow":                      true,
	"historical-rating":                         true,
	"historical-discounted-cash-flow-statement": true,
	"historical-price-full":                     true,
}

// ErrUnknownStatement is returned by Statement for kinds outside the screener whitelist.
var ErrUnknownStatement = errors.New("tipo de demonstrativo desconhecido")

func IsStatementKind(kind string) bool {
	return statementKinds[kind]
}

// Statement returns the raw provider payload for one of the screener datasets.
func (c *Client) Statement(ctx context.Context, kind, symbol string) (json.RawMessage, error) {
	if !IsStatementKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatement, kind)
	}
	symbol = domain.NormalizeTicker(symbol)

	raw, _, err := cache.GetOrFetch(ctx, c.cache, "fmp:"+kind+":"+symbol, c.cfg.FundamentalsTTL, func(ctx context.Context) (json.RawMessage, error) {
		var payload json.RawMessage
		if err := c.fmp.getJSON(ctx, kind, c.cfg.FMPBaseURL+"/"+kind+"/"+url.PathEscape(symbol), nil, &payload); err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" || trimmed == "[]" || trimmed == "{}" || trimmed == "null" {
			return nil, fmt.Errorf("%s de %s: %w", kind, symbol, ErrNotFound)
		}
		return payload, nil
	})
	return raw, err
}

type polygonNews struct {
	Results []struct {
		PublishedUTC time.Time `json:"published_utc"`
		Title        string    `json:"title"`
		Description  string    `json:"description"`
		ArticleURL   string    `json:"article_url"`
		Publisher    struct {
			Name string `json:"name"`
		} `json:"publisher"`
	} `json:"results"`
}

// News returns recent articles about symbol, newest first as reported by the provider.
// News is not cached.
func (c *Client) News(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	symbol = domain.NormalizeTicker(symbol)

	q := limitQuery(limit)
	q.Set("ticker", symbol)
	q.Set("sort", "published_utc")

	var payload polygonNews
	if err := c.polygon.getJSON(ctx, "news", c.cfg.PolygonBaseURL+"/v2/reference/news", q, &payload); err != nil {
		return nil, err
	}

	articles := make([]domain.NewsArticle, 0, len(payload.Results))
	for _, r := range payload.Results {
		articles = append(articles, domain.NewsArticle{
			PublishedUTC: r.PublishedUTC,
			Title:        r.Title,
			Description:  r.Description,
			ArticleURL:   r.ArticleURL,
			Publisher:    r.Publisher.Name,
		})
	}
	return articles, nil
}

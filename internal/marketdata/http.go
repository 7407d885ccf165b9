package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/metrics"
)

var ErrNotFound = errors.New("dados não encontrados")

// UpstreamError is returned for non-2xx provider responses and open breakers.
type UpstreamError struct {
	Provider string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// providerClient is a JSON-over-HTTP client for one provider guarded by a circuit breaker.
type providerClient struct {
	provider string
	keyParam string
	apiKey   string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger
}

func newProviderClient(provider, keyParam, apiKey string, timeout time.Duration) *providerClient {
	log := logger.Named("marketdata").With(zap.String("provider", provider))

	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("circuit breaker mudou de estado",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &providerClient{
		provider: provider,
		keyParam: keyParam,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		breaker:  gobreaker.NewCircuitBreaker(settings),
		log:      log,
	}
}

// getJSON issues a GET to rawURL with the API key appended and decodes the body into dest.
// endpoint labels the request in metrics.
func (c *providerClient) getJSON(ctx context.Context, endpoint, rawURL string, query url.Values, dest interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set(c.keyParam, c.apiKey)
	}
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, rawURL, dest)
	})

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "breaker_open"
		err = &UpstreamError{Provider: c.provider, Err: err}
	default:
		status = "error"
	}
	metrics.RecordUpstream(c.provider, endpoint, status, time.Since(start))

	if err != nil {
		c.log.Debug("falha na requisição", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return err
}

func (c *providerClient) do(ctx context.Context, rawURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("erro ao criar requisição: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &UpstreamError{Provider: c.provider, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &UpstreamError{Provider: c.provider, Status: resp.StatusCode, Err: fmt.Errorf("erro ao decodificar resposta: %w", err)}
	}
	return nil
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

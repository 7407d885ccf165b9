package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/portfolio-analyzer/pkg/metrics"
)

func newStatusServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestProviderClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server, hits := newStatusServer(t, http.StatusInternalServerError)
	c := newProviderClient("breaker-trip", "apikey", "", time.Second)
	ctx := context.Background()
	openBefore := testutil.ToFloat64(metrics.UpstreamRequests.WithLabelValues("breaker-trip", "quote", "breaker_open"))

	for i := 0; i < 5; i++ {
		var dest []fmpQuote
		err := c.getJSON(ctx, "quote", server.URL, nil, &dest)

		var upstream *UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, http.StatusInternalServerError, upstream.Status)
	}
	assert.Equal(t, gobreaker.StateOpen, c.breaker.State())

	var dest []fmpQuote
	err := c.getJSON(ctx, "quote", server.URL, nil, &dest)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "breaker-trip", upstream.Provider)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), hits.Load())
	assert.Equal(t, openBefore+1, testutil.ToFloat64(metrics.UpstreamRequests.WithLabelValues("breaker-trip", "quote", "breaker_open")))
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(metrics.BreakerState.WithLabelValues("breaker-trip")))
}

func TestProviderClient_NotFoundKeepsBreakerClosed(t *testing.T) {
	server, hits := newStatusServer(t, http.StatusNotFound)
	c := newProviderClient("breaker-404", "apikey", "", time.Second)

	for i := 0; i < 10; i++ {
		var dest []fmpQuote
		err := c.getJSON(context.Background(), "quote", server.URL, nil, &dest)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
	assert.Equal(t, int32(10), hits.Load())
}

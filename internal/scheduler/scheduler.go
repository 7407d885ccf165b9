package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

type TickerLister interface {
	Tickers(ctx context.Context) ([]string, error)
}

type QuoteRefresher interface {
	RefreshQuotes(ctx context.Context, tickers []string) domain.QuoteSet
}

// RunStats describes the last warm-up run.
type RunStats struct {
	LastRun      time.Time     `json:"last_run"`
	LastDuration time.Duration `json:"last_duration"`
	Refreshed    int           `json:"refreshed"`
	Missing      []string      `json:"missing,omitempty"`
	Error        string        `json:"error,omitempty"`
	Runs         int64         `json:"runs"`
}

// QuoteWarmer refreshes the cached quotes of every held ticker on a cron schedule,
// so report requests rarely wait on the provider.
type QuoteWarmer struct {
	cron      *cron.Cron
	schedule  string
	tickers   TickerLister
	refresher QuoteRefresher
	timeout   time.Duration
	log       *zap.Logger

	mu      sync.RWMutex
	running bool
	stats   RunStats
}

type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Printf(format string, args ...interface{}) {
	l.log.Sugar().Debugf(format, args...)
}

func NewQuoteWarmer(schedule string, tickers TickerLister, refresher QuoteRefresher, timeout time.Duration) *QuoteWarmer {
	log := logger.Named("scheduler")
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &QuoteWarmer{
		cron:      cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cron.VerbosePrintfLogger(cronLogger{log}))),
		schedule:  schedule,
		tickers:   tickers,
		refresher: refresher,
		timeout:   timeout,
		log:       log,
	}
}

func (w *QuoteWarmer) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("agendador já iniciado")
	}

	if _, err := w.cron.AddFunc(w.schedule, func() { w.Run(context.Background()) }); err != nil {
		return err
	}

	w.cron.Start()
	w.running = true
	w.log.Info("agendador de cotações iniciado", zap.String("schedule", w.schedule))
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (w *QuoteWarmer) Stop(ctx context.Context) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
		w.log.Warn("agendador interrompido antes do fim do job")
	}
}

// Run performs one warm-up immediately.
func (w *QuoteWarmer) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	stats := RunStats{LastRun: start.UTC()}

	tickers, err := w.tickers.Tickers(ctx)
	if err != nil {
		stats.Error = err.Error()
		w.log.Error("erro ao listar tickers", zap.Error(err))
	} else if len(tickers) > 0 {
		set := w.refresher.RefreshQuotes(ctx, tickers)
		stats.Refreshed = len(set.Prices)
		stats.Missing = set.Missing
	}
	stats.LastDuration = time.Since(start)

	w.mu.Lock()
	stats.Runs = w.stats.Runs + 1
	w.stats = stats
	w.mu.Unlock()

	w.log.Info("cotações atualizadas",
		zap.Int("refreshed", stats.Refreshed),
		zap.Strings("missing", stats.Missing),
		zap.Duration("duration", stats.LastDuration))
}

func (w *QuoteWarmer) Stats() RunStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

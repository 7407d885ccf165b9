package ingestion

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/metrics"
)

// TradeLoader persists parsed trades.
type TradeLoader interface {
	LoadTrades(ctx context.Context, trades []domain.TradeRecord) (int64, error)
}

type BulkLoader struct {
	pool      *pgxpool.Pool
	batchSize int
}

func NewBulkLoader(pool *pgxpool.Pool, batchSize int) *BulkLoader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &BulkLoader{
		pool:      pool,
		batchSize: batchSize,
	}
}

var tradeColumns = []string{"ticker", "company", "trade_date", "shares", "cost_share"}

// LoadTrades copies trades chunk by chunk inside one transaction so ids follow input order
// and a failing chunk leaves nothing behind.
func (l *BulkLoader) LoadTrades(ctx context.Context, trades []domain.TradeRecord) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradesProcessingDuration.WithLabelValues("copy"))

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, chunk := range l.splitIntoChunks(trades) {
		count, err := tx.CopyFrom(ctx, pgx.Identifier{"trades"}, tradeColumns, &tradeSource{trades: chunk})
		if err != nil {
			metrics.RecordTradesLoaded("csv", "error", len(trades))
			return 0, fmt.Errorf("erro no COPY: %w", err)
		}
		total += count
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("erro no commit: %w", err)
	}

	metrics.RecordTradesLoaded("csv", "success", int(total))
	return total, nil
}

type tradeSource struct {
	trades []domain.TradeRecord
	index  int
}

func (ts *tradeSource) Next() bool {
	ts.index++
	return ts.index <= len(ts.trades)
}

func (ts *tradeSource) Values() ([]interface{}, error) {
	if ts.index > len(ts.trades) {
		return nil, nil
	}

	trade := ts.trades[ts.index-1]
	return []interface{}{
		domain.NormalizeTicker(trade.Ticker),
		trade.Company,
		trade.Date.Time,
		trade.Shares,
		trade.CostShare,
	}, nil
}

func (ts *tradeSource) Err() error {
	return nil
}

func (l *BulkLoader) splitIntoChunks(trades []domain.TradeRecord) [][]domain.TradeRecord {
	return chunk(trades, l.batchSize)
}

func chunk(trades []domain.TradeRecord, size int) [][]domain.TradeRecord {
	var chunks [][]domain.TradeRecord

	for i := 0; i < len(trades); i += size {
		end := i + size
		if end > len(trades) {
			end = len(trades)
		}
		chunks = append(chunks, trades[i:end])
	}

	return chunks
}

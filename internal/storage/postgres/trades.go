package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/metrics"
)

type TradeRepository struct {
	db *DB
}

func NewTradeRepository(db *DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Trades lists every open-position trade in insertion order.
func (r *TradeRepository) Trades(ctx context.Context) ([]domain.TradeRecord, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("trades"))

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, ticker, company, trade_date, shares, cost_share
		FROM trades
		ORDER BY id
	`)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("trades", "error").Inc()
		return nil, fmt.Errorf("erro ao buscar trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var date time.Time
		if err := rows.Scan(&t.ID, &t.Ticker, &t.Company, &date, &t.Shares, &t.CostShare); err != nil {
			return nil, fmt.Errorf("erro ao escanear trade: %w", err)
		}
		t.Ticker = domain.NormalizeTicker(t.Ticker)
		t.Date = domain.DateOf(date)
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		metrics.DatabaseQueries.WithLabelValues("trades", "error").Inc()
		return nil, fmt.Errorf("erro ao iterar resultados: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("trades", "success").Inc()
	return trades, nil
}

func (r *TradeRepository) ClosedTrades(ctx context.Context) ([]domain.ClosedTrade, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("closed_trades"))

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, ticker, entry_date, sell_date, entry_price, sell_price, share_number
		FROM closed_trades
		ORDER BY id
	`)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("closed_trades", "error").Inc()
		return nil, fmt.Errorf("erro ao buscar operações encerradas: %w", err)
	}
	defer rows.Close()

	var closed []domain.ClosedTrade
	for rows.Next() {
		var c domain.ClosedTrade
		var entry, sell time.Time
		if err := rows.Scan(&c.ID, &c.Ticker, &entry, &sell, &c.EntryPrice, &c.SellPrice, &c.ShareNumber); err != nil {
			return nil, fmt.Errorf("erro ao escanear operação: %w", err)
		}
		c.Ticker = domain.NormalizeTicker(c.Ticker)
		c.EntryDate = domain.DateOf(entry)
		c.SellDate = domain.DateOf(sell)
		closed = append(closed, c)
	}

	if err := rows.Err(); err != nil {
		metrics.DatabaseQueries.WithLabelValues("closed_trades", "error").Inc()
		return nil, fmt.Errorf("erro ao iterar resultados: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("closed_trades", "success").Inc()
	return closed, nil
}

func (r *TradeRepository) InsertTrade(ctx context.Context, t domain.TradeRecord) (int64, error) {
	timer := metrics.NewTimer()
	var id int64
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO trades (ticker, company, trade_date, shares, cost_share)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, domain.NormalizeTicker(t.Ticker), t.Company, t.Date.Time, t.Shares, t.CostShare).Scan(&id)
	if err != nil {
		metrics.RecordDatabaseQuery("insert_trade", "error", timer.Elapsed().Seconds())
		return 0, fmt.Errorf("erro ao inserir trade: %w", err)
	}

	metrics.RecordDatabaseQuery("insert_trade", "success", timer.Elapsed().Seconds())
	return id, nil
}

// InsertClosedTrades writes all rows in one transaction, keeping their order.
func (r *TradeRepository) InsertClosedTrades(ctx context.Context, closed []domain.ClosedTrade) (int64, error) {
	if len(closed) == 0 {
		return 0, nil
	}
	timer := metrics.NewTimer()

	rows := make([][]interface{}, len(closed))
	for i, c := range closed {
		rows[i] = []interface{}{
			domain.NormalizeTicker(c.Ticker),
			c.EntryDate.Time,
			c.SellDate.Time,
			c.EntryPrice,
			c.SellPrice,
			c.ShareNumber,
		}
	}

	count, err := r.db.pool.CopyFrom(ctx,
		pgx.Identifier{"closed_trades"},
		[]string{"ticker", "entry_date", "sell_date", "entry_price", "sell_price", "share_number"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		metrics.RecordDatabaseQuery("insert_closed_trades", "error", timer.Elapsed().Seconds())
		return 0, fmt.Errorf("erro no COPY: %w", err)
	}

	metrics.RecordDatabaseQuery("insert_closed_trades", "success", timer.Elapsed().Seconds())
	return count, nil
}

// TableStats counts the rows of the trade tables.
type TableStats struct {
	Trades       int64 `json:"trades"`
	ClosedTrades int64 `json:"closed_trades"`
	Tickers      int64 `json:"tickers"`
}

func (r *TradeRepository) Stats(ctx context.Context) (*TableStats, error) {
	var s TableStats
	err := r.db.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM trades),
			(SELECT COUNT(*) FROM closed_trades),
			(SELECT COUNT(DISTINCT ticker) FROM trades)
	`).Scan(&s.Trades, &s.ClosedTrades, &s.Tickers)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar estatísticas: %w", err)
	}
	return &s, nil
}

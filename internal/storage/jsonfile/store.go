package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
)

// Store reads trades from the JSON exports kept next to the dashboards.
// Files are read on every call so edits are picked up without a restart.
type Store struct {
	tradesPath string
	closedPath string
}

func NewStore(tradesPath, closedPath string) *Store {
	return &Store{
		tradesPath: tradesPath,
		closedPath: closedPath,
	}
}

func (s *Store) Trades(ctx context.Context) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	if err := readJSON(ctx, s.tradesPath, &trades); err != nil {
		return nil, err
	}

	for i := range trades {
		trades[i].ID = int64(i + 1)
		trades[i].Ticker = domain.NormalizeTicker(trades[i].Ticker)
	}
	return trades, nil
}

func (s *Store) ClosedTrades(ctx context.Context) ([]domain.ClosedTrade, error) {
	var closed []domain.ClosedTrade
	if err := readJSON(ctx, s.closedPath, &closed); err != nil {
		return nil, err
	}

	for i := range closed {
		closed[i].ID = int64(i + 1)
		closed[i].Ticker = domain.NormalizeTicker(closed[i].Ticker)
	}
	return closed, nil
}

func readJSON(ctx context.Context, path string, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("erro ao ler %s: %w", path, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("erro ao parsear %s: %w", path, err)
	}
	return nil
}

package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStore_Trades(t *testing.T) {
	dir := t.TempDir()
	trades := writeFile(t, dir, "trades.json", `[
		{"ticker": " nu ", "company": "Nu Holdings", "date": "2024-01-15", "shares": 100, "cost_share": "8.75"},
		{"ticker": "TSM", "company": "Taiwan Semi", "date": "2024-02-01", "shares": "10.5", "cost_share": 120}
	]`)

	got, err := NewStore(trades, "").Trades(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "NU", got[0].Ticker)
	assert.Equal(t, "2024-01-15", got[0].Date.String())
	assert.Equal(t, "8.75", got[0].CostShare.String())
	assert.Equal(t, "10.5", got[1].Shares.String())
	assert.Equal(t, int64(2), got[1].ID)
}

func TestStore_ClosedTrades(t *testing.T) {
	dir := t.TempDir()
	closed := writeFile(t, dir, "past_trades.json", `[
		{"ticker": "cvs", "entry_date": "2023-03-01", "sell_date": "2023-09-01", "entry_price": 75, "sell_price": 68.2, "share_number": 20}
	]`)

	got, err := NewStore("", closed).ClosedTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "CVS", got[0].Ticker)
	assert.Equal(t, 184, got[0].HoldingPeriodDays())
	assert.Equal(t, "68.2", got[0].SellPrice.String())
}

func TestStore_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", `{"not": "a list"}`)

	_, err := NewStore(filepath.Join(dir, "missing.json"), "").Trades(context.Background())
	assert.Error(t, err)

	_, err = NewStore(bad, "").Trades(context.Background())
	assert.Error(t, err)
}

package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists daily bars in market.daily_bars
// ⭐ SSOT: price persistence lives only here
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store over an existing pool
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetPrices loads bars for symbols in [start, end]; symbols without rows are absent
func (s *PGStore) GetPrices(ctx context.Context, symbols []string, start, end time.Time) (map[string]*Series, error) {
	query := `
		SELECT symbol, trade_date, open, high, low, close, volume
		FROM market.daily_bars
		WHERE symbol = ANY($1) AND trade_date BETWEEN $2 AND $3
		ORDER BY symbol, trade_date
	`

	rows, err := s.pool.Query(ctx, query, symbols, Day(start), Day(end))
	if err != nil {
		return nil, fmt.Errorf("query daily bars: %w", err)
	}
	defer rows.Close()

	bars := make(map[string][]Bar)
	for rows.Next() {
		var sym string
		var b Bar
		if err := rows.Scan(&sym, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan daily bar: %w", err)
		}
		bars[sym] = append(bars[sym], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily bars: %w", err)
	}

	out := make(map[string]*Series, len(bars))
	for sym, bs := range bars {
		out[sym] = NewSeries(sym, bs)
	}
	return out, nil
}

// LatestDate returns the most recent stored bar date for symbol
func (s *PGStore) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	var d *time.Time
	err := s.pool.QueryRow(ctx, `SELECT max(trade_date) FROM market.daily_bars WHERE symbol = $1`, symbol).Scan(&d)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest bar date for %s: %w", symbol, err)
	}
	if d == nil {
		return time.Time{}, false, nil
	}
	return *d, true, nil
}

// SaveSeries upserts every bar of every series in one batch
func (s *PGStore) SaveSeries(ctx context.Context, series map[string]*Series) (int, error) {
	query := `
		INSERT INTO market.daily_bars (symbol, trade_date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for sym, ser := range series {
		for _, b := range ser.Bars {
			batch.Queue(query, sym, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("upsert daily bars: %w", err)
	}
	return batch.Len(), nil
}

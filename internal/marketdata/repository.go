package marketdata

import (
	"context"
	"sort"
	"time"
)

// Repository is the explicit per-run price store. One is built for each
// backtest or live session and passed down; nothing is cached globally.
type Repository struct {
	series map[string]*Series
}

// NewRepository wraps already-fetched series
func NewRepository(series map[string]*Series) *Repository {
	if series == nil {
		series = make(map[string]*Series)
	}
	return &Repository{series: series}
}

// Put adds or replaces a symbol's series
func (r *Repository) Put(s *Series) {
	r.series[s.Symbol] = s
}

// Series returns a symbol's series
func (r *Repository) Series(symbol string) (*Series, bool) {
	s, ok := r.series[symbol]
	return s, ok
}

// All returns the underlying map; callers must not mutate it
func (r *Repository) All() map[string]*Series {
	return r.series
}

// Close returns symbol's close on exactly date
func (r *Repository) Close(symbol string, date time.Time) (float64, bool) {
	s, ok := r.series[symbol]
	if !ok {
		return 0, false
	}
	return s.CloseOn(date)
}

// Symbols returns stored symbols in sorted order
func (r *Repository) Symbols() []string {
	out := make([]string, 0, len(r.series))
	for sym := range r.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Until returns views of every series up to date, for point-in-time ranking
func (r *Repository) Until(date time.Time) map[string]*Series {
	out := make(map[string]*Series, len(r.series))
	for sym, s := range r.series {
		out[sym] = s.Until(date)
	}
	return out
}

// GetPrices serves the repository as a PriceProvider
func (r *Repository) GetPrices(_ context.Context, symbols []string, start, end time.Time) (map[string]*Series, error) {
	out := make(map[string]*Series, len(symbols))
	for _, sym := range symbols {
		if s, ok := r.series[sym]; ok {
			if v := s.Between(start, end); v.Len() > 0 {
				out[sym] = v
			}
		}
	}
	return out, nil
}

package marketdata

import (
	"sort"
	"time"
)

// Bar is one daily OHLCV record
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is a symbol's bars sorted by date with at most one bar per day.
// Lookups are binary searches; a zero-value Series is empty and safe to query.
// ⭐ SSOT: every date lookup on prices goes through Series
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Day truncates t to midnight UTC, the key used for every bar lookup
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewSeries sorts bars, normalizes their dates and keeps the last bar seen for a day
func NewSeries(symbol string, bars []Bar) *Series {
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	for i := range cp {
		cp[i].Date = Day(cp[i].Date)
	}
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })

	out := cp[:0]
	for _, b := range cp {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return &Series{Symbol: symbol, Bars: out}
}

// Len returns the number of bars
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// index returns the position of the first bar on or after date
func (s *Series) index(date time.Time) int {
	d := Day(date)
	return sort.Search(len(s.Bars), func(i int) bool { return !s.Bars[i].Date.Before(d) })
}

// indexOn returns the position of the bar on date, if any
func (s *Series) indexOn(date time.Time) (int, bool) {
	if s.Len() == 0 {
		return 0, false
	}
	i := s.index(date)
	if i < len(s.Bars) && s.Bars[i].Date.Equal(Day(date)) {
		return i, true
	}
	return 0, false
}

// HasDate reports whether a bar exists on date
func (s *Series) HasDate(date time.Time) bool {
	_, ok := s.indexOn(date)
	return ok
}

// CloseOn returns the close on exactly date
func (s *Series) CloseOn(date time.Time) (float64, bool) {
	i, ok := s.indexOn(date)
	if !ok {
		return 0, false
	}
	return s.Bars[i].Close, true
}

// ClosingPriceOnOrBefore returns the close on date or the nearest prior trading day
func (s *Series) ClosingPriceOnOrBefore(date time.Time) (float64, bool) {
	if s.Len() == 0 {
		return 0, false
	}
	i := s.index(date)
	if i < len(s.Bars) && s.Bars[i].Date.Equal(Day(date)) {
		return s.Bars[i].Close, true
	}
	if i == 0 {
		return 0, false
	}
	return s.Bars[i-1].Close, true
}

// DailyReturn is close(date)/close(previous bar) − 1.
// ok is false when date has no bar or is the first bar.
func (s *Series) DailyReturn(date time.Time) (float64, bool) {
	i, ok := s.indexOn(date)
	if !ok || i == 0 || s.Bars[i-1].Close <= 0 {
		return 0, false
	}
	return s.Bars[i].Close/s.Bars[i-1].Close - 1, true
}

// Until returns a view of bars dated on or before date. The view shares storage.
func (s *Series) Until(date time.Time) *Series {
	if s.Len() == 0 {
		return &Series{Symbol: s.symbol()}
	}
	i := s.index(date)
	if i < len(s.Bars) && s.Bars[i].Date.Equal(Day(date)) {
		i++
	}
	return &Series{Symbol: s.Symbol, Bars: s.Bars[:i]}
}

// Between returns a view of bars dated in [start, end]
func (s *Series) Between(start, end time.Time) *Series {
	until := s.Until(end)
	if until.Len() == 0 {
		return until
	}
	return &Series{Symbol: until.Symbol, Bars: until.Bars[until.index(start):]}
}

func (s *Series) symbol() string {
	if s == nil {
		return ""
	}
	return s.Symbol
}

// Last returns the latest bar
func (s *Series) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes returns close prices in date order
func (s *Series) Closes() []float64 {
	out := make([]float64, s.Len())
	for i := 0; i < s.Len(); i++ {
		out[i] = s.Bars[i].Close
	}
	return out
}

// Volumes returns volumes in date order
func (s *Series) Volumes() []float64 {
	out := make([]float64, s.Len())
	for i := 0; i < s.Len(); i++ {
		out[i] = float64(s.Bars[i].Volume)
	}
	return out
}

// Dates returns bar dates in order
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, s.Len())
	for i := 0; i < s.Len(); i++ {
		out[i] = s.Bars[i].Date
	}
	return out
}

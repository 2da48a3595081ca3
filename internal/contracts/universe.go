package contracts

import "time"

// Universe is the eligible symbol list for one date
type Universe struct {
	Name      string            `json:"name"`      // e.g. nifty500
	Benchmark string            `json:"benchmark"` // index symbol used for regime and alpha
	Date      time.Time         `json:"date"`
	Symbols   []string          `json:"symbols"`
	Excluded  map[string]string `json:"excluded"` // symbol: reason
}

// Contains checks if a symbol is eligible
func (u *Universe) Contains(symbol string) bool {
	for _, s := range u.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// IsExcluded reports whether a symbol was dropped and why
func (u *Universe) IsExcluded(symbol string) (bool, string) {
	reason, ok := u.Excluded[symbol]
	return ok, reason
}

// Count returns the number of eligible symbols
func (u *Universe) Count() int {
	return len(u.Symbols)
}

package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/pkg/logger"
)

// ErrEmptyRanking means the market is strong but nothing was ranked, which
// points at a data problem. Callers decide whether to treat it as weak.
var ErrEmptyRanking = errors.New("empty ranking in a strong market")

// ClassifierConfig holds the band rule parameters
type ClassifierConfig struct {
	TopN          int     // target number of holdings
	Band          int     // extra rank positions a held stock may slip before it is sold
	JumpThreshold float64 // max single-day return for a new entry, 0.15 = 15%
}

// DefaultClassifierConfig returns the production parameters
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{TopN: 15, Band: 5, JumpThreshold: 0.15}
}

// Validate checks the config
func (c ClassifierConfig) Validate() error {
	if c.TopN <= 0 {
		return fmt.Errorf("top_n must be positive, got %d", c.TopN)
	}
	if c.Band < 0 {
		return fmt.Errorf("band must be non-negative, got %d", c.Band)
	}
	if c.JumpThreshold <= 0 {
		return fmt.Errorf("jump threshold must be positive, got %v", c.JumpThreshold)
	}
	return nil
}

// Input is everything one classification needs
type Input struct {
	Ranked       []contracts.RankedStock
	Held         []string
	MarketStrong bool
	AsOf         time.Time
	Prices       map[string]*marketdata.Series // jump filter source; missing data keeps the candidate
}

// JumpRejection records a candidate dropped by the jump filter
type JumpRejection struct {
	Symbol      string  `json:"symbol"`
	Rank        int     `json:"rank"`
	DailyReturn float64 `json:"daily_return"`
}

// Classification partitions holdings and picks new entries
type Classification struct {
	Held         []string        `json:"held"`    // by rank
	New          []string        `json:"new"`     // by rank
	Removed      []string        `json:"removed"` // by symbol
	Rejected     []JumpRejection `json:"rejected,omitempty"`
	MarketStrong bool            `json:"market_strong"`
	ranks        map[string]int
}

// Rank returns a symbol's rank, nil when it was not ranked or c is nil
func (c *Classification) Rank(symbol string) *int {
	if c == nil {
		return nil
	}
	if r, ok := c.ranks[symbol]; ok {
		return contracts.RankOf(r)
	}
	return nil
}

// IsEmpty reports a classification with nothing to do
func (c *Classification) IsEmpty() bool {
	return len(c.Held) == 0 && len(c.New) == 0 && len(c.Removed) == 0
}

// Classifier applies the top-N + band rule
// ⭐ SSOT: hold/sell/buy partitioning lives only here
type Classifier struct {
	config ClassifierConfig
	logger *logger.Logger
}

// NewClassifier creates a classifier after validating config
func NewClassifier(config ClassifierConfig, log *logger.Logger) (*Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{config: config, logger: log.WithComponent("classifier")}, nil
}

// Config returns the classifier parameters
func (c *Classifier) Config() ClassifierConfig {
	return c.config
}

// Classify partitions in.Held into Held/Removed and selects New entries.
// It is a pure function of its input.
func (c *Classifier) Classify(in Input) (*Classification, error) {
	held := dedupe(in.Held)
	ranks := contracts.RankIndex(in.Ranked)
	out := &Classification{MarketStrong: in.MarketStrong, ranks: ranks}

	if !in.MarketStrong {
		out.Removed = held
		sort.Strings(out.Removed)
		return out, nil
	}
	if len(in.Ranked) == 0 {
		return nil, ErrEmptyRanking
	}

	keep := make(map[string]bool, len(held))
	limit := c.config.TopN + c.config.Band
	for _, sym := range held {
		if r, ok := ranks[sym]; ok && r <= limit {
			out.Held = append(out.Held, sym)
			keep[sym] = true
		} else {
			out.Removed = append(out.Removed, sym)
		}
	}
	sort.SliceStable(out.Held, func(i, j int) bool { return ranks[out.Held[i]] < ranks[out.Held[j]] })
	sort.Strings(out.Removed)

	slots := c.config.TopN - len(out.Held)
	ordered := make([]contracts.RankedStock, len(in.Ranked))
	copy(ordered, in.Ranked)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	for _, rs := range ordered {
		if slots <= 0 {
			break
		}
		if keep[rs.Symbol] {
			continue
		}
		slots--

		if ret, ok := c.dailyReturn(in, rs.Symbol); ok && ret > c.config.JumpThreshold {
			out.Rejected = append(out.Rejected, JumpRejection{Symbol: rs.Symbol, Rank: rs.Rank, DailyReturn: ret})
			c.logger.WithFields(map[string]interface{}{
				"symbol":       rs.Symbol,
				"as_of":        in.AsOf.Format("2006-01-02"),
				"daily_return": ret,
			}).Info("Skipping new entry after large one-day jump")
			continue
		}
		out.New = append(out.New, rs.Symbol)
	}

	return out, nil
}

func (c *Classifier) dailyReturn(in Input, symbol string) (float64, bool) {
	s, ok := in.Prices[symbol]
	if !ok {
		return 0, false
	}
	return s.DailyReturn(in.AsOf)
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

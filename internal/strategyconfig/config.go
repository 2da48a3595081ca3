package strategyconfig

import (
	"time"
	_ "time/tzdata" // schedule timezones resolve on hosts without zoneinfo

	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/internal/portfolio"
	"github.com/wonny/xcelerator/internal/selection"
)

// Config is the full strategy configuration
// ⭐ SSOT: every tunable strategy parameter is declared here
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Universe   Universe   `yaml:"universe" json:"universe"`
	Ranking    Ranking    `yaml:"ranking" json:"ranking"`
	Screening  Screening  `yaml:"screening" json:"screening"`
	Regime     Regime     `yaml:"regime" json:"regime"`
	Portfolio  Portfolio  `yaml:"portfolio" json:"portfolio"`
	Allocation Allocation `yaml:"allocation" json:"allocation"`
	Schedule   Schedule   `yaml:"schedule" json:"schedule"`
	Backtest   Backtest   `yaml:"backtest" json:"backtest"`
}

// Meta identifies the strategy
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Universe selects the index and manual exclusions
type Universe struct {
	Name    string   `yaml:"name" json:"name"` // nifty500 | nifty100
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// Ranking holds factor weights; they must sum to 1.0
type Ranking struct {
	Weights RankingWeights `yaml:"weights" json:"weights"`
}

type RankingWeights struct {
	Return    float64 `yaml:"return" json:"return"`
	RSI       float64 `yaml:"rsi" json:"rsi"`
	Proximity float64 `yaml:"proximity" json:"proximity"`
}

// Slice returns weights in ranker order
func (w RankingWeights) Slice() []float64 {
	return []float64{w.Return, w.RSI, w.Proximity}
}

// Sum returns the sum of all weights
func (w RankingWeights) Sum() float64 {
	return w.Return + w.RSI + w.Proximity
}

// Screening holds the hard cuts applied before ranking
type Screening struct {
	MinHistory           int     `yaml:"min_history" json:"min_history"`
	MinPrice             float64 `yaml:"min_price" json:"min_price"`
	MaxPrice             float64 `yaml:"max_price" json:"max_price"`
	MinMedianTradedValue float64 `yaml:"min_median_traded_value" json:"min_median_traded_value"`
	MinAvgVolume         float64 `yaml:"min_avg_volume" json:"min_avg_volume"`
	LiquidityWindow      int     `yaml:"liquidity_window" json:"liquidity_window"`
}

// Regime holds the market-strength thresholds
type Regime struct {
	EMASpans         []int   `yaml:"ema_spans" json:"ema_spans"`
	BreadthPeriod    int     `yaml:"breadth_period" json:"breadth_period"`
	BreadthThreshold float64 `yaml:"breadth_threshold" json:"breadth_threshold"`
}

// Portfolio holds the band rule
type Portfolio struct {
	TopN          int     `yaml:"top_n" json:"top_n"`
	Band          int     `yaml:"band" json:"band"`
	JumpThreshold float64 `yaml:"jump_threshold" json:"jump_threshold"`
}

// Allocation holds the capital allocator settings
type Allocation struct {
	Strategy           string  `yaml:"strategy" json:"strategy"`       // CONSERVATIVE | AGGRESSIVE
	Reservation        string  `yaml:"reservation" json:"reservation"` // ROUND_TRIP | FREED_ONLY | NONE
	TransactionCostPct float64 `yaml:"transaction_cost_pct" json:"transaction_cost_pct"`
}

// Schedule defines when rebalances happen
type Schedule struct {
	Frequency string `yaml:"frequency" json:"frequency"` // W | M
	Weekday   string `yaml:"weekday" json:"weekday"`
	TimeLocal string `yaml:"time_local" json:"time_local"` // HH:MM, live runs only
	Timezone  string `yaml:"timezone" json:"timezone"`
}

// Backtest holds simulation defaults
type Backtest struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	LookbackDays   int     `yaml:"lookback_days" json:"lookback_days"` // calendar days of history loaded before start
}

// Default returns the production strategy
func Default() *Config {
	screen := selection.DefaultScreenerConfig()
	regime := selection.DefaultRegimeConfig()
	cls := portfolio.DefaultClassifierConfig()
	alloc := planner.DefaultConfig()

	return &Config{
		Meta:     Meta{StrategyID: "xcelerator_alpha", Version: "1"},
		Universe: Universe{Name: "nifty500", Exclude: []string{}},
		Ranking:  Ranking{Weights: RankingWeights{Return: 0.8, RSI: 0.1, Proximity: 0.1}},
		Screening: Screening{
			MinHistory:           screen.MinHistory,
			MinPrice:             screen.MinPrice,
			MaxPrice:             screen.MaxPrice,
			MinMedianTradedValue: screen.MinMedianTradedValue,
			MinAvgVolume:         screen.MinAvgVolume,
			LiquidityWindow:      screen.LiquidityWindow,
		},
		Regime: Regime{
			EMASpans:         regime.EMASpans,
			BreadthPeriod:    regime.BreadthPeriod,
			BreadthThreshold: regime.BreadthThreshold,
		},
		Portfolio: Portfolio{TopN: cls.TopN, Band: cls.Band, JumpThreshold: cls.JumpThreshold},
		Allocation: Allocation{
			Strategy:           string(alloc.Strategy),
			Reservation:        string(alloc.Reservation),
			TransactionCostPct: alloc.TransactionCostPct,
		},
		Schedule: Schedule{Frequency: "W", Weekday: "Wednesday", TimeLocal: "15:00", Timezone: "Asia/Kolkata"},
		Backtest: Backtest{InitialCapital: 1_000_000, LookbackDays: 400},
	}
}

// ScreenerConfig maps the screening section
func (c *Config) ScreenerConfig() selection.ScreenerConfig {
	return selection.ScreenerConfig{
		MinHistory:           c.Screening.MinHistory,
		MinPrice:             c.Screening.MinPrice,
		MaxPrice:             c.Screening.MaxPrice,
		MinMedianTradedValue: c.Screening.MinMedianTradedValue,
		MinAvgVolume:         c.Screening.MinAvgVolume,
		LiquidityWindow:      c.Screening.LiquidityWindow,
	}
}

// RegimeConfig maps the regime section
func (c *Config) RegimeConfig() selection.RegimeConfig {
	return selection.RegimeConfig{
		EMASpans:         c.Regime.EMASpans,
		BreadthPeriod:    c.Regime.BreadthPeriod,
		BreadthThreshold: c.Regime.BreadthThreshold,
	}
}

// ClassifierConfig maps the portfolio section
func (c *Config) ClassifierConfig() portfolio.ClassifierConfig {
	return portfolio.ClassifierConfig{
		TopN:          c.Portfolio.TopN,
		Band:          c.Portfolio.Band,
		JumpThreshold: c.Portfolio.JumpThreshold,
	}
}

// AllocatorConfig maps the allocation section
func (c *Config) AllocatorConfig() planner.Config {
	return planner.Config{
		TransactionCostPct: c.Allocation.TransactionCostPct,
		Strategy:           planner.Strategy(c.Allocation.Strategy),
		Reservation:        planner.Reservation(c.Allocation.Reservation),
	}
}

// Location returns the schedule timezone, falling back to UTC when unknown
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DecisionSnapshot records the exact config behind a live plan
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	CreatedAt  time.Time `json:"created_at"`
}

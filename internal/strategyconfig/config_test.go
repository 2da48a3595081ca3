package strategyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/xcelerator/internal/planner"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "nifty500", cfg.Universe.Name)
	assert.Equal(t, 15, cfg.Portfolio.TopN)
	assert.Equal(t, 5, cfg.Portfolio.Band)
	assert.Equal(t, []float64{0.8, 0.1, 0.1}, cfg.Ranking.Weights.Slice())
	assert.Equal(t, planner.DefaultConfig(), cfg.AllocatorConfig())
	assert.Equal(t, 0.15, cfg.ClassifierConfig().JumpThreshold)
	assert.Equal(t, 252, cfg.ScreenerConfig().MinHistory)
	assert.Equal(t, []int{22, 44, 66}, cfg.RegimeConfig().EMASpans)
	assert.Empty(t, Warn(cfg))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
meta:
  strategy_id: nifty100_monthly
  version: "2"
universe:
  name: nifty100
  exclude: [YESBANK]
portfolio:
  top_n: 10
  band: 3
  jump_threshold: 0.2
allocation:
  strategy: CONSERVATIVE
  reservation: FREED_ONLY
  transaction_cost_pct: 0.002
schedule:
  frequency: M
  weekday: Friday
  time_local: "14:30"
  timezone: Asia/Kolkata
`), 0o644))

	cfg, data, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	assert.Equal(t, "nifty100", cfg.Universe.Name)
	assert.Equal(t, []string{"YESBANK"}, cfg.Universe.Exclude)
	assert.Equal(t, 10, cfg.Portfolio.TopN)
	assert.Equal(t, planner.Conservative, cfg.AllocatorConfig().Strategy)
	assert.Equal(t, planner.FreedOnly, cfg.AllocatorConfig().Reservation)
	assert.Equal(t, "M", cfg.Schedule.Frequency)

	// sections not in the file keep their defaults
	assert.Equal(t, 0.8, cfg.Ranking.Weights.Return)
	assert.Equal(t, 1_000_000.0, cfg.Backtest.InitialCapital)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("portfolio:\n  top_m: 10\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		field string
		edit  func(*Config)
	}{
		{"strategy id", "meta.strategy_id", func(c *Config) { c.Meta.StrategyID = "" }},
		{"universe", "universe.name", func(c *Config) { c.Universe.Name = "sensex" }},
		{"weights sum", "ranking.weights", func(c *Config) { c.Ranking.Weights.RSI = 0.3 }},
		{"negative weight", "ranking.weights", func(c *Config) {
			c.Ranking.Weights = RankingWeights{Return: 1.2, RSI: -0.1, Proximity: -0.1}
		}},
		{"price band", "screening.max_price", func(c *Config) { c.Screening.MaxPrice = 50 }},
		{"ema spans", "regime.ema_spans", func(c *Config) { c.Regime.EMASpans = nil }},
		{"breadth", "regime.breadth_threshold", func(c *Config) { c.Regime.BreadthThreshold = 1.5 }},
		{"top n", "portfolio", func(c *Config) { c.Portfolio.TopN = 0 }},
		{"band", "portfolio", func(c *Config) { c.Portfolio.Band = -1 }},
		{"cost", "allocation", func(c *Config) { c.Allocation.TransactionCostPct = 1 }},
		{"strategy", "allocation", func(c *Config) { c.Allocation.Strategy = "GREEDY" }},
		{"reservation", "allocation", func(c *Config) { c.Allocation.Reservation = "HALF" }},
		{"frequency", "schedule.frequency", func(c *Config) { c.Schedule.Frequency = "D" }},
		{"weekday", "schedule.weekday", func(c *Config) { c.Schedule.Weekday = "Saturday" }},
		{"time", "schedule.time_local", func(c *Config) { c.Schedule.TimeLocal = "25:00" }},
		{"capital", "backtest.initial_capital", func(c *Config) { c.Backtest.InitialCapital = 0 }},
		{"lookback", "backtest.lookback_days", func(c *Config) { c.Backtest.LookbackDays = 100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)

			err := Validate(cfg)
			var ve ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Portfolio.Band = 0
	cfg.Allocation.TransactionCostPct = 0

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{"NO_BAND", "ZERO_COST"}, codes)
}

func TestHash(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	assert.Len(t, a, 64)

	b, _ := Hash(Default())
	assert.Equal(t, a, b)

	changed := Default()
	changed.Portfolio.TopN = 20
	c, _ := Hash(changed)
	assert.NotEqual(t, a, c)
}

func TestDecisionSnapshot(t *testing.T) {
	cfg := Default()
	snap, err := NewDecisionSnapshot(cfg, nil)
	require.NoError(t, err)

	hash, _ := Hash(cfg)
	assert.Equal(t, hash, snap.ConfigHash)
	assert.Equal(t, "xcelerator_alpha", snap.StrategyID)
	assert.Contains(t, snap.ConfigYAML, "top_n: 15")
	assert.WithinDuration(t, time.Now(), snap.CreatedAt, time.Minute)
}

func TestValidateHHMM(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"09:00", true},
		{"15:00", true},
		{"23:59", true},
		{"24:00", false},
		{"9:00", false},
		{"", false},
	}

	for _, tt := range tests {
		err := validateHHMM(tt.input)
		assert.Equal(t, tt.ok, err == nil, tt.input)
	}
}

func TestLocation(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())

	cfg.Schedule.Timezone = "Nowhere/City"
	assert.Equal(t, time.UTC, cfg.Location())
}

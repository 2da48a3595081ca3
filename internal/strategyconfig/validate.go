package strategyconfig

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/wonny/xcelerator/internal/backtest"
	"github.com/wonny/xcelerator/internal/universe"
)

// ValidationError stops the program: the config cannot be run
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning is a recommendation violation, logged only
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Universe ===
	if _, err := universe.Benchmark(cfg.Universe.Name); err != nil {
		return ValidationError{"universe.name", err.Error()}
	}

	// === Ranking ===
	w := cfg.Ranking.Weights
	for _, v := range w.Slice() {
		if v < 0 {
			return ValidationError{"ranking.weights", "must be >= 0"}
		}
	}
	if err := validateWeightsSum(w.Slice(), 1.0, 1e-6); err != nil {
		return ValidationError{"ranking.weights", err.Error()}
	}

	// === Screening ===
	if cfg.Screening.MinHistory <= 0 {
		return ValidationError{"screening.min_history", "must be > 0"}
	}
	if cfg.Screening.LiquidityWindow <= 0 {
		return ValidationError{"screening.liquidity_window", "must be > 0"}
	}
	if cfg.Screening.MinPrice < 0 {
		return ValidationError{"screening.min_price", "must be >= 0"}
	}
	if cfg.Screening.MaxPrice <= cfg.Screening.MinPrice {
		return ValidationError{"screening.max_price", "must be > min_price"}
	}

	// === Regime ===
	if len(cfg.Regime.EMASpans) == 0 {
		return ValidationError{"regime.ema_spans", "at least one span required"}
	}
	for _, s := range cfg.Regime.EMASpans {
		if s <= 0 {
			return ValidationError{"regime.ema_spans", "spans must be > 0"}
		}
	}
	if cfg.Regime.BreadthPeriod <= 0 {
		return ValidationError{"regime.breadth_period", "must be > 0"}
	}
	if err := validatePctRange(cfg.Regime.BreadthThreshold, "regime.breadth_threshold"); err != nil {
		return err
	}

	// === Portfolio ===
	if err := cfg.ClassifierConfig().Validate(); err != nil {
		return ValidationError{"portfolio", err.Error()}
	}

	// === Allocation ===
	if err := cfg.AllocatorConfig().Validate(); err != nil {
		return ValidationError{"allocation", err.Error()}
	}

	// === Schedule ===
	if _, err := backtest.ParseFrequency(cfg.Schedule.Frequency); err != nil {
		return ValidationError{"schedule.frequency", err.Error()}
	}
	day, err := backtest.ParseWeekday(cfg.Schedule.Weekday)
	if err != nil {
		return ValidationError{"schedule.weekday", err.Error()}
	}
	if day == time.Saturday || day == time.Sunday {
		return ValidationError{"schedule.weekday", "must be a trading weekday"}
	}
	if err := validateHHMM(cfg.Schedule.TimeLocal); err != nil {
		return ValidationError{"schedule.time_local", err.Error()}
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return ValidationError{"schedule.timezone", err.Error()}
	}

	// === Backtest ===
	if cfg.Backtest.InitialCapital <= 0 {
		return ValidationError{"backtest.initial_capital", "must be > 0"}
	}
	if cfg.Backtest.LookbackDays < cfg.Screening.MinHistory {
		return ValidationError{"backtest.lookback_days", "must cover screening.min_history"}
	}

	return nil
}

// Warn returns recommendation violations that do not stop the program
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Portfolio.Band == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_BAND",
			Message: "portfolio.band=0 sells every stock that leaves top_n, expect high turnover",
		})
	}
	if cfg.Allocation.TransactionCostPct == 0 && cfg.Allocation.Reservation != "NONE" {
		warnings = append(warnings, Warning{
			Code:    "ZERO_COST",
			Message: "allocation.transaction_cost_pct=0 makes the reservation a no-op",
		})
	}
	if cfg.Ranking.Weights.Return < 0.5 {
		warnings = append(warnings, Warning{
			Code:    "LOW_MOMENTUM_WEIGHT",
			Message: fmt.Sprintf("ranking.weights.return=%.2f, momentum is no longer the dominant factor", cfg.Ranking.Weights.Return),
		})
	}

	return warnings
}

var hhmm = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func validateHHMM(s string) error {
	if s == "" {
		return errors.New("required")
	}
	if !hhmm.MatchString(s) {
		return fmt.Errorf("invalid format: %s (expected HH:MM)", s)
	}
	return nil
}

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("weights is empty")
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}

	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("weights sum = %.6f, expected %.6f", sum, target)
	}
	return nil
}

func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in [0, 1]"}
	}
	return nil
}

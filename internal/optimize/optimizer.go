package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/wonny/xcelerator/internal/backtest"
	"github.com/wonny/xcelerator/internal/selection"
	"github.com/wonny/xcelerator/pkg/logger"
)

// ErrInvalidStep is returned for a grid step that does not divide 1 evenly
var ErrInvalidStep = errors.New("grid step must divide 1 into whole steps")

// Config holds search parameters
type Config struct {
	Step        float64 // weight grid step, e.g. 0.1
	MaxDrawdown float64 // drawdown limit as a positive fraction, e.g. 0.20
	Workers     int     // concurrent backtests
}

// DefaultConfig returns a 0.1 grid under a 20% drawdown limit
func DefaultConfig() Config {
	return Config{Step: 0.1, MaxDrawdown: 0.20, Workers: 4}
}

// Validate checks the config
func (c Config) Validate() error {
	if _, err := steps(c.Step); err != nil {
		return err
	}
	if math.IsNaN(c.MaxDrawdown) || c.MaxDrawdown <= 0 || c.MaxDrawdown > 1 {
		return fmt.Errorf("max drawdown must be in (0, 1], got %v", c.MaxDrawdown)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

func steps(step float64) (int, error) {
	if math.IsNaN(step) || step <= 0 || step > 1 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidStep, step)
	}
	n := int(math.Round(1 / step))
	if math.Abs(float64(n)*step-1) > 1e-9 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidStep, step)
	}
	return n, nil
}

// Grid returns every return/RSI/proximity weight vector on the step lattice that sums to 1,
// ordered by return weight, then RSI weight
func Grid(step float64) ([][]float64, error) {
	n, err := steps(step)
	if err != nil {
		return nil, err
	}

	grid := make([][]float64, 0, (n+1)*(n+2)/2)
	for i := 0; i <= n; i++ {
		for j := 0; j <= n-i; j++ {
			w := []float64{
				float64(i) / float64(n),
				float64(j) / float64(n),
				float64(n-i-j) / float64(n),
			}
			if selection.ValidateWeights(w) != nil {
				continue
			}
			grid = append(grid, w)
		}
	}
	return grid, nil
}

// RunFunc backtests one weight vector
type RunFunc func(ctx context.Context, weights []float64) (*backtest.Metrics, error)

// Trial is the backtest of one weight vector
type Trial struct {
	Weights     []float64         `json:"weights"`
	Metrics     *backtest.Metrics `json:"metrics,omitempty"`
	WithinLimit bool              `json:"within_limit"`
	Error       string            `json:"error,omitempty"`
}

// Result is a finished search
type Result struct {
	Trials   []Trial `json:"trials"` // within limit first, then by CAGR
	Best     *Trial  `json:"best,omitempty"`
	Valid    int     `json:"valid"`
	Rejected int     `json:"rejected"` // drawdown above the limit
	Failed   int     `json:"failed"`
}

// Optimizer searches ranking weights for the best CAGR under a drawdown limit
// ⭐ SSOT: weight search lives here only
type Optimizer struct {
	config Config
	run    RunFunc
	logger *logger.Logger
}

// New creates an optimizer
func New(config Config, run RunFunc, log *logger.Logger) (*Optimizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{
		config: config,
		run:    run,
		logger: log.WithComponent("optimize"),
	}, nil
}

// Search backtests every grid vector over a worker pool
func (o *Optimizer) Search(ctx context.Context, grid [][]float64) (*Result, error) {
	o.logger.WithFields(map[string]interface{}{
		"combinations": len(grid),
		"max_drawdown": o.config.MaxDrawdown,
		"workers":      o.config.Workers,
	}).Info("Starting weight search")

	trials := make([]Trial, len(grid))
	indexCh := make(chan int, len(grid))
	for i := range grid {
		indexCh <- i
	}
	close(indexCh)

	var wg sync.WaitGroup
	for w := 0; w < o.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexCh {
				if ctx.Err() != nil {
					return
				}
				trials[i] = o.trial(ctx, grid[i])
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := summarize(trials)

	fields := map[string]interface{}{
		"valid":    result.Valid,
		"rejected": result.Rejected,
		"failed":   result.Failed,
	}
	if result.Best != nil {
		fields["best_weights"] = result.Best.Weights
		fields["best_cagr"] = result.Best.Metrics.CAGR
	}
	o.logger.WithFields(fields).Info("Weight search completed")

	return result, nil
}

func (o *Optimizer) trial(ctx context.Context, weights []float64) Trial {
	t := Trial{Weights: weights}
	m, err := o.run(ctx, weights)
	if err != nil {
		t.Error = err.Error()
		o.logger.WithError(err).WithField("weights", weights).Warn("Backtest failed")
		return t
	}
	t.Metrics = m
	t.WithinLimit = m.MaxDrawdown <= o.config.MaxDrawdown
	return t
}

// summarize orders trials and picks the best one inside the limit.
// Equal CAGRs keep grid order so the earliest vector wins.
func summarize(trials []Trial) *Result {
	result := &Result{Trials: trials}
	for _, t := range trials {
		switch {
		case t.Metrics == nil:
			result.Failed++
		case t.WithinLimit:
			result.Valid++
		default:
			result.Rejected++
		}
	}

	sort.SliceStable(result.Trials, func(i, j int) bool {
		a, b := result.Trials[i], result.Trials[j]
		if (a.Metrics == nil) != (b.Metrics == nil) {
			return a.Metrics != nil
		}
		if a.Metrics == nil {
			return false
		}
		if a.WithinLimit != b.WithinLimit {
			return a.WithinLimit
		}
		return a.Metrics.CAGR > b.Metrics.CAGR
	})

	if len(result.Trials) > 0 && result.Trials[0].WithinLimit {
		result.Best = &result.Trials[0]
	}
	return result
}

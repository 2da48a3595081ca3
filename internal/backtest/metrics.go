package backtest

import (
	"math"
	"time"
)

// RiskFreeRate is the annual rate used by Sharpe and Sortino
const RiskFreeRate = 0.06

// TradingDaysPerYear annualizes daily volatility
const TradingDaysPerYear = 252

// Metrics summarises a backtest. Rates are fractions (0.12 = 12%).
type Metrics struct {
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	TradingDays int       `json:"trading_days"`

	InitialCapital float64 `json:"initial_capital"`
	FinalValue     float64 `json:"final_value"`
	TotalReturn    float64 `json:"total_return"`
	CAGR           float64 `json:"cagr"`
	MaxDrawdown    float64 `json:"max_drawdown"` // positive magnitude
	Volatility     float64 `json:"volatility"`   // annualized
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`

	BenchmarkReturn float64 `json:"benchmark_return"`
	BenchmarkCAGR   float64 `json:"benchmark_cagr"`
	Alpha           float64 `json:"alpha"` // CAGR − benchmark CAGR

	TradedValue         float64 `json:"traded_value"`
	TransactionCosts    float64 `json:"transaction_costs"`
	AdjustedFinalValue  float64 `json:"adjusted_final_value"`
	AdjustedTotalReturn float64 `json:"adjusted_total_return"`
	AdjustedCAGR        float64 `json:"adjusted_cagr"`

	TotalTrades    int `json:"total_trades"`
	RejectedOrders int `json:"rejected_orders"`
	RebalanceCount int `json:"rebalance_count"`
}

// EquityPoint is one mark-to-market observation
type EquityPoint struct {
	Date             time.Time `json:"date"`
	Value            float64   `json:"value"`
	DailyReturn      float64   `json:"daily_return"`
	CumulativeReturn float64   `json:"cumulative_return"`
}

// metricsInput is what calculateMetrics needs beyond the curves
type metricsInput struct {
	initialCapital float64
	tradedValue    float64
	costPct        float64
	trades         int
	rejected       int
	rebalances     int
}

// calculateMetrics derives performance figures from the equity and benchmark curves
func calculateMetrics(curve, benchmark []EquityPoint, in metricsInput) Metrics {
	m := Metrics{
		InitialCapital: in.initialCapital,
		TradedValue:    in.tradedValue,
		TotalTrades:    in.trades,
		RejectedOrders: in.rejected,
		RebalanceCount: in.rebalances,
		TradingDays:    len(curve),
	}
	if len(curve) == 0 || in.initialCapital <= 0 {
		return m
	}

	m.StartDate = curve[0].Date
	m.EndDate = curve[len(curve)-1].Date
	years := m.EndDate.Sub(m.StartDate).Hours() / 24 / 365.25

	m.FinalValue = curve[len(curve)-1].Value
	m.TotalReturn = m.FinalValue/in.initialCapital - 1
	m.CAGR = cagr(in.initialCapital, m.FinalValue, years)

	returns := dailyReturns(curve)
	m.Volatility = stdDev(returns) * math.Sqrt(TradingDaysPerYear)
	if m.Volatility > 0 {
		m.SharpeRatio = (m.CAGR - RiskFreeRate) / m.Volatility
	}

	downside := make([]float64, 0)
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if dd := stdDev(downside) * math.Sqrt(TradingDaysPerYear); dd > 0 {
		m.SortinoRatio = (m.CAGR - RiskFreeRate) / dd
	}

	m.MaxDrawdown = maxDrawdown(curve)

	if len(benchmark) > 0 && benchmark[0].Value > 0 {
		first, last := benchmark[0].Value, benchmark[len(benchmark)-1].Value
		m.BenchmarkReturn = last/first - 1
		m.BenchmarkCAGR = cagr(first, last, years)
		m.Alpha = m.CAGR - m.BenchmarkCAGR
	}

	m.TransactionCosts = in.tradedValue * in.costPct
	m.AdjustedFinalValue = m.FinalValue - m.TransactionCosts
	m.AdjustedTotalReturn = m.AdjustedFinalValue/in.initialCapital - 1
	m.AdjustedCAGR = cagr(in.initialCapital, m.AdjustedFinalValue, years)

	return m
}

func cagr(start, end, years float64) float64 {
	if years <= 0 || start <= 0 || end <= 0 {
		return 0
	}
	return math.Pow(end/start, 1/years) - 1
}

func dailyReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev <= 0 {
			continue
		}
		out = append(out, curve[i].Value/prev-1)
	}
	return out
}

// stdDev is the sample standard deviation
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs) - 1)
	return math.Sqrt(variance)
}

func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	worst := 0.0
	peak := curve[0].Value
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Value) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// buildCurve fills daily and cumulative returns relative to base
func buildCurve(dates []time.Time, values []float64, base float64) []EquityPoint {
	curve := make([]EquityPoint, len(dates))
	for i, d := range dates {
		p := EquityPoint{Date: d, Value: values[i]}
		if i > 0 && values[i-1] > 0 {
			p.DailyReturn = values[i]/values[i-1] - 1
		}
		if base > 0 {
			p.CumulativeReturn = values[i]/base - 1
		}
		curve[i] = p
	}
	return curve
}

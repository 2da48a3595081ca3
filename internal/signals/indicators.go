// Package signals computes the price indicators behind momentum ranking and
// market regime. Every function takes oldest-first values and reports ok=false
// when there is not enough history.
package signals

import (
	"math"
	"sort"
)

// Return is the percent change from values[len-n] to the last value
func Return(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n {
		return 0, false
	}
	past := closes[len(closes)-n]
	if past == 0 {
		return 0, false
	}
	return (closes[len(closes)-1] - past) / past * 100, true
}

// RSI uses simple rolling means of gains and losses over the last period deltas.
// No losses in the window gives 100.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	if losses == 0 {
		return 100, true
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - 100/(1+rs), true
}

// SMA is the mean of the last period values
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA is the recursive exponential mean seeded with the first value,
// alpha = 2/(span+1), over the whole slice.
func EMA(values []float64, span int) (float64, bool) {
	if span <= 0 || len(values) < span {
		return 0, false
	}
	alpha := 2.0 / (float64(span) + 1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema, true
}

// HighProximity is the last close as a percent of the highest close in lookback
func HighProximity(closes []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(closes) < lookback {
		return 0, false
	}
	high := math.Inf(-1)
	for _, c := range closes[len(closes)-lookback:] {
		high = math.Max(high, c)
	}
	if high <= 0 {
		return 0, false
	}
	return closes[len(closes)-1] / high * 100, true
}

// AvgVolume is the mean volume over the last window bars
func AvgVolume(volumes []float64, window int) (float64, bool) {
	return SMA(volumes, window)
}

// MedianTradedValue is the median of close×volume over the last window bars
func MedianTradedValue(closes, volumes []float64, window int) (float64, bool) {
	if window <= 0 || len(closes) < window || len(volumes) < window {
		return 0, false
	}
	tv := make([]float64, window)
	for i := 0; i < window; i++ {
		tv[i] = closes[len(closes)-window+i] * volumes[len(volumes)-window+i]
	}
	return Median(tv), true
}

// Median of values; the input is not modified
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// MeanOf averages an indicator over several horizons; any missing horizon fails
func MeanOf(closes []float64, horizons []int, fn func([]float64, int) (float64, bool)) (float64, bool) {
	if len(horizons) == 0 {
		return 0, false
	}
	var sum float64
	for _, h := range horizons {
		v, ok := fn(closes, h)
		if !ok {
			return 0, false
		}
		sum += v
	}
	return sum / float64(len(horizons)), true
}

// DescendingRanks assigns 1 to the largest value; ties share their average rank
func DescendingRanks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

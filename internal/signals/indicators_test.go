package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturn(t *testing.T) {
	closes := []float64{100, 110, 120, 150}

	r, ok := Return(closes, 4)
	require.True(t, ok)
	assert.InDelta(t, 50.0, r, 1e-9)

	r, ok = Return(closes, 2)
	require.True(t, ok)
	assert.InDelta(t, 25.0, r, 1e-9)

	_, ok = Return(closes, 5)
	assert.False(t, ok)
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		period int
		want   float64
		wantOK bool
	}{
		{"only gains", []float64{1, 2, 3, 4}, 3, 100, true},
		{"balanced", []float64{10, 11, 10, 11, 10}, 4, 50, true},
		{"one gain two losses", []float64{10, 13, 12, 11}, 3, 60, true},
		{"too short", []float64{1, 2}, 2, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RSI(tt.closes, tt.period)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSMAAndEMA(t *testing.T) {
	sma, ok := SMA([]float64{1, 2, 3, 4}, 2)
	require.True(t, ok)
	assert.Equal(t, 3.5, sma)

	// span 3 gives alpha 0.5: 1 → 1.5 → 2.25
	ema, ok := EMA([]float64{1, 2, 3}, 3)
	require.True(t, ok)
	assert.InDelta(t, 2.25, ema, 1e-12)

	_, ok = EMA([]float64{1, 2}, 3)
	assert.False(t, ok)
}

func TestHighProximity(t *testing.T) {
	p, ok := HighProximity([]float64{50, 200, 100, 150}, 3)
	require.True(t, ok)
	assert.InDelta(t, 75.0, p, 1e-9)

	p, ok = HighProximity([]float64{200, 100, 150}, 2)
	require.True(t, ok)
	assert.InDelta(t, 100.0, p, 1e-9)
}

func TestLiquidity(t *testing.T) {
	closes := []float64{10, 10, 20, 30}
	volumes := []float64{1, 100, 2, 3}

	m, ok := MedianTradedValue(closes, volumes, 3)
	require.True(t, ok)
	assert.Equal(t, 90.0, m) // traded values 1000, 40, 90

	v, ok := AvgVolume(volumes, 2)
	require.True(t, ok)
	assert.Equal(t, 2.5, v)

	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 0.0, Median(nil))
}

func TestMeanOf(t *testing.T) {
	closes := []float64{100, 100, 110, 121}

	m, ok := MeanOf(closes, []int{2, 3}, Return)
	require.True(t, ok)
	assert.InDelta(t, (10+21)/2.0, m, 1e-9)

	_, ok = MeanOf(closes, []int{2, 9}, Return)
	assert.False(t, ok)
}

func TestDescendingRanks(t *testing.T) {
	assert.Equal(t, []float64{2, 1, 3}, DescendingRanks([]float64{5, 9, 1}))
	assert.Equal(t, []float64{1.5, 1.5, 3}, DescendingRanks([]float64{7, 7, 2}))
	assert.Equal(t, []float64{3, 1, 3, 3}, DescendingRanks([]float64{1, 4, 1, 1}))
	assert.Empty(t, DescendingRanks(nil))
}

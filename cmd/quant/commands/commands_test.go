package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/xcelerator/internal/backtest"
	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/external/kite"
	"github.com/wonny/xcelerator/internal/live"
	"github.com/wonny/xcelerator/internal/optimize"
	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/internal/rebalance"
)

func reportWith(status planner.Status) *live.Report {
	return &live.Report{Outcome: &rebalance.Outcome{Plan: &planner.Plan{Status: status}}}
}

func TestExitError(t *testing.T) {
	assert.NoError(t, exitError(reportWith(planner.StatusOK), nil))
	assert.NoError(t, exitError(reportWith(planner.StatusNothingToRebalance), nil))
	assert.NoError(t, exitError(&live.Report{Status: live.StatusNoChange}, nil))
	assert.ErrorIs(t, exitError(reportWith(planner.StatusInsufficientCapital), nil), rebalance.ErrPlanNotExecutable)

	boom := errors.New("boom")
	assert.ErrorIs(t, exitError(reportWith(planner.StatusOK), boom), boom)
}

func TestRemoveOutputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"plan-2024-05-08.csv", "topup-2024-05-09.csv", "TCS.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, backtestDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, backtestDir, "equity.csv"), []byte("x"), 0o644))

	removed, err := removeOutputs(dir)
	require.NoError(t, err)
	assert.Len(t, removed, 3)

	// stored bars stay
	_, err = os.Stat(filepath.Join(dir, "TCS.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, backtestDir))
	assert.True(t, os.IsNotExist(err))

	removed, err = removeOutputs(dir)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestPrintHoldingsTSV(t *testing.T) {
	var buf bytes.Buffer
	PrintHoldings(&buf, []kite.Holding{{Symbol: "TCS", Quantity: 20, AvgBuyPrice: 3150, LastPrice: 3100.5}}, true)
	assert.Equal(t, "SYMBOL\tQTY\tAVG PRICE\tLAST PRICE\nTCS\t20\t3150.00\t3100.50\n", buf.String())
}

func TestPrintPositionsTable(t *testing.T) {
	var buf bytes.Buffer
	PrintPositions(&buf, []kite.OpenPosition{
		{Symbol: "INFY", Action: contracts.ActionBuy, Quantity: 5, AvgBuyPrice: 1500},
		{Symbol: "ITC", Action: contracts.ActionSell, Quantity: -3, AvgBuyPrice: 400},
	}, false)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "SYMBOL"))
	assert.Contains(t, lines[3], "SELL")
	assert.Contains(t, lines[3], "-3")
}

func TestPrintOptimizeResult(t *testing.T) {
	best := optimize.Trial{
		Weights:     []float64{0.4, 0, 0.6},
		Metrics:     &backtest.Metrics{CAGR: 0.18, MaxDrawdown: 0.12, SharpeRatio: 1.1},
		WithinLimit: true,
	}
	over := optimize.Trial{
		Weights: []float64{1, 0, 0},
		Metrics: &backtest.Metrics{CAGR: 0.30, MaxDrawdown: 0.35},
	}
	failed := optimize.Trial{Weights: []float64{0, 1, 0}, Error: "no trades"}
	result := &optimize.Result{Trials: []optimize.Trial{best, over, failed}, Valid: 1, Rejected: 1, Failed: 1}
	result.Best = &result.Trials[0]

	var buf bytes.Buffer
	PrintOptimizeResult(&buf, result, 2)
	out := buf.String()

	assert.Contains(t, out, "(0.40,0.00,0.60)")
	assert.Contains(t, out, "+18.00%")
	assert.Contains(t, out, "over")
	assert.NotContains(t, out, "(0.00,1.00,0.00)")

	buf.Reset()
	PrintOptimizeResult(&buf, &optimize.Result{Trials: []optimize.Trial{over}, Rejected: 1}, 10)
	assert.Contains(t, buf.String(), "none within the drawdown limit")
}

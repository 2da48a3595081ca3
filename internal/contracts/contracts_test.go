package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionSortKey(t *testing.T) {
	assert.Less(t, ActionSell.SortKey(), ActionHold.SortKey())
	assert.Less(t, ActionHold.SortKey(), ActionBuy.SortKey())
	assert.Greater(t, Action("X").SortKey(), ActionBuy.SortKey())
}

func TestActionIsOrder(t *testing.T) {
	assert.True(t, ActionBuy.IsOrder())
	assert.True(t, ActionSell.IsOrder())
	assert.False(t, ActionHold.IsOrder())
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"BUY", ActionBuy, false},
		{"SELL", ActionSell, false},
		{"HOLD", "", true},
		{"buy", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValues(t *testing.T) {
	assert.Equal(t, 1500.0, Transaction{Quantity: 3, Price: 500}.Value())
	assert.Equal(t, 2000.0, AllocationTarget{Quantity: 4, LastPrice: 500}.Value())
	assert.Equal(t, 250.0, Position{Quantity: 5, AvgBuyPrice: 50}.CostBasis())
}

func TestRankOfCopies(t *testing.T) {
	r := 3
	p := RankOf(r)
	r = 4
	assert.Equal(t, 3, *p)
}

func TestRankIndexAndTopRanked(t *testing.T) {
	ranked := []RankedStock{{Symbol: "TCS", Rank: 1}, {Symbol: "INFY", Rank: 2}}

	idx := RankIndex(ranked)
	assert.Equal(t, map[string]int{"TCS": 1, "INFY": 2}, idx)
	assert.True(t, ranked[1].IsTopRanked(2))
	assert.False(t, ranked[1].IsTopRanked(1))
}

func TestUniverse(t *testing.T) {
	u := &Universe{Symbols: []string{"TCS", "INFY"}, Excluded: map[string]string{"YESBANK": "ASM"}}

	assert.True(t, u.Contains("TCS"))
	assert.False(t, u.Contains("YESBANK"))
	ok, reason := u.IsExcluded("YESBANK")
	assert.True(t, ok)
	assert.Equal(t, "ASM", reason)
	assert.Equal(t, 2, u.Count())
}

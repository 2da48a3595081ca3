package contracts

// RankedStock is one entry of a ranking, best first
// ⭐ SSOT: ranker → classifier result shape
type RankedStock struct {
	Symbol         string      `json:"symbol"`
	Rank           int         `json:"rank"`            // 1-based
	CompositeScore float64     `json:"composite_score"` // weighted factor rank, lower is better
	LastClose      float64     `json:"last_close"`
	Scores         ScoreDetail `json:"scores"`
}

// ScoreDetail keeps the raw factor values behind a composite score
type ScoreDetail struct {
	AvgReturn     float64 `json:"avg_return"`     // mean % return over 22/44/66 days
	AvgRSI        float64 `json:"avg_rsi"`        // mean RSI over 22/44/66 days
	HighProximity float64 `json:"high_proximity"` // close / 252-day high
	ReturnRank    float64 `json:"return_rank"`
	RSIRank       float64 `json:"rsi_rank"`
	ProximityRank float64 `json:"proximity_rank"`
}

// IsTopRanked checks if the stock is in top N ranks
func (r RankedStock) IsTopRanked(n int) bool {
	return r.Rank > 0 && r.Rank <= n
}

// RankIndex maps symbol to rank for constant-time lookups
func RankIndex(ranked []RankedStock) map[string]int {
	idx := make(map[string]int, len(ranked))
	for _, r := range ranked {
		idx[r.Symbol] = r.Rank
	}
	return idx
}

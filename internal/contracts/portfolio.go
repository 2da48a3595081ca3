package contracts

// Position is a holding owned by a ledger or reported by a broker
type Position struct {
	Symbol      string  `json:"symbol"`
	Quantity    int     `json:"quantity"`
	AvgBuyPrice float64 `json:"avg_buy_price"`
}

// CostBasis returns Quantity × AvgBuyPrice
func (p Position) CostBasis() float64 {
	return float64(p.Quantity) * p.AvgBuyPrice
}

// AllocationTarget is one stock handed to the allocator
// ⭐ SSOT: portfolio → planner input shape
type AllocationTarget struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	Rank      *int    `json:"rank"`     // nil only for a cash equivalent
	Quantity  int     `json:"quantity"` // shares currently held
}

// Value returns Quantity × LastPrice
func (a AllocationTarget) Value() float64 {
	return float64(a.Quantity) * a.LastPrice
}

// RankOf returns a pointer to a copy of r, for AllocationTarget.Rank
func RankOf(r int) *int {
	return &r
}

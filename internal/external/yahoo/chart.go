package yahoo

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/xcelerator/internal/marketdata"
)

// ErrNoData is returned when the chart response carries no result
var ErrNoData = errors.New("no chart data")

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// parseChart converts a chart payload into adjusted bars.
// Rows with a missing field are dropped; OHLC are scaled by adjclose/close when present.
func parseChart(body []byte) ([]marketdata.Bar, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, ErrNoData
	}

	r := resp.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]marketdata.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		open, okO := at(q.Open, i)
		high, okH := at(q.High, i)
		low, okL := at(q.Low, i)
		closePrice, okC := at(q.Close, i)
		volume, okV := at(q.Volume, i)
		if !okO || !okH || !okL || !okC || !okV || closePrice <= 0 {
			continue
		}

		factor := 1.0
		if a, ok := at(adj, i); ok && a > 0 {
			factor = a / closePrice
		}

		bars = append(bars, marketdata.Bar{
			Date:   marketdata.Day(time.Unix(ts+r.Meta.GMTOffset, 0).UTC()),
			Open:   open * factor,
			High:   high * factor,
			Low:    low * factor,
			Close:  closePrice * factor,
			Volume: int64(volume),
		})
	}
	return bars, nil
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

package universe

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Measure is an NSE surveillance list
type Measure string

const (
	ASM Measure = "asm" // additional surveillance measure
	GSM Measure = "gsm" // graded surveillance measure
	ESM Measure = "esm" // enhanced surveillance measure
)

// Measures lists every surveillance list applied to the universe
var Measures = []Measure{ASM, GSM, ESM}

// asmAllowedStage stays in the universe; every other ASM stage is excluded
const asmAllowedStage = "Stage I"

// ParseSurveillanceHTML extracts excluded symbols from a surveillance report page.
// It reads every table with a Symbol column; for ASM only rows whose stage is
// not Stage I are excluded.
func ParseSurveillanceHTML(r io.Reader, measure Measure) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s html: %w", measure, err)
	}

	excluded := make(map[string]bool)
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		symbolCol, stageCol := -1, -1
		table.Find("thead tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
			h := strings.ToLower(strings.TrimSpace(th.Text()))
			switch {
			case h == "symbol":
				symbolCol = i
			case strings.Contains(h, "stage"):
				stageCol = i
			}
		})
		if symbolCol < 0 {
			return
		}

		table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= symbolCol {
				return
			}
			sym := strings.TrimSpace(cells.Eq(symbolCol).Text())
			if sym == "" {
				return
			}
			stage := ""
			if stageCol >= 0 && cells.Length() > stageCol {
				stage = strings.TrimSpace(cells.Eq(stageCol).Text())
			}
			if measure == ASM && stage == asmAllowedStage {
				return
			}
			excluded[sym] = true
		})
	})

	return sortedKeys(excluded), nil
}

// asmEntry is one row of the ASM JSON report
type asmEntry struct {
	Symbol    string `json:"symbol"`
	Indicator string `json:"asmSurvIndicator"`
}

type asmReport struct {
	LongTerm struct {
		Data []asmEntry `json:"data"`
	} `json:"longterm"`
	ShortTerm struct {
		Data []asmEntry `json:"data"`
	} `json:"shortterm"`
}

// ParseSurveillanceJSON extracts excluded symbols from the NSE report API payload.
// ASM is an object with longterm/shortterm lists; GSM and ESM are flat arrays.
func ParseSurveillanceJSON(data []byte, measure Measure) ([]string, error) {
	excluded := make(map[string]bool)

	if measure == ASM {
		var report asmReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, fmt.Errorf("decode asm report: %w", err)
		}
		for _, list := range [][]asmEntry{report.LongTerm.Data, report.ShortTerm.Data} {
			for _, e := range list {
				if strings.TrimSpace(e.Indicator) != asmAllowedStage && strings.TrimSpace(e.Symbol) != "" {
					excluded[strings.TrimSpace(e.Symbol)] = true
				}
			}
		}
		return sortedKeys(excluded), nil
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode %s report: %w", measure, err)
	}
	for _, row := range rows {
		if sym, ok := row["symbol"].(string); ok && strings.TrimSpace(sym) != "" {
			excluded[strings.TrimSpace(sym)] = true
		}
	}
	return sortedKeys(excluded), nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

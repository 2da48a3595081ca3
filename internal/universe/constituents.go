package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownUniverse is returned for an index name without a benchmark mapping
var ErrUnknownUniverse = errors.New("unknown universe")

// benchmarks maps a universe to the index symbol used for regime and alpha
// ⭐ SSOT: universe → benchmark mapping
var benchmarks = map[string]string{
	"nifty500": "^CRSLDX",
	"nifty100": "^CNX100",
}

// Benchmark returns the benchmark index symbol for a universe
func Benchmark(name string) (string, error) {
	b, ok := benchmarks[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownUniverse, name, strings.Join(Names(), ", "))
	}
	return b, nil
}

// Names returns the supported universes, sorted
func Names() []string {
	out := make([]string, 0, len(benchmarks))
	for n := range benchmarks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// size extracts N from "niftyN"
func size(name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(name), "nifty"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q should look like nifty500", ErrUnknownUniverse, name)
	}
	return n, nil
}

// ConstituentFile returns the NSE archive file name for a universe
func ConstituentFile(name string) (string, error) {
	n, err := size(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ind_nifty%dlist.csv", n), nil
}

// ParseConstituents reads an NSE index constituent CSV and returns EQ-series symbols
// in file order, skipping DUMMY placeholders and duplicates.
func ParseConstituents(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	symbolCol, seriesCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "symbol":
			symbolCol = i
		case "series":
			seriesCol = i
		}
	}
	if symbolCol < 0 || seriesCol < 0 {
		return nil, fmt.Errorf("constituent csv needs Symbol and Series columns, got %v", header)
	}

	seen := make(map[string]bool)
	out := make([]string, 0, 512)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) <= symbolCol || len(row) <= seriesCol {
			continue
		}
		sym := strings.TrimSpace(row[symbolCol])
		if sym == "" || strings.TrimSpace(row[seriesCol]) != "EQ" || strings.HasPrefix(sym, "DUMMY") || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out, nil
}

package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// ReadCSV parses Date,Open,High,Low,Close,Volume rows. Volume may be fractional.
func ReadCSV(symbol string, r io.Reader) (*Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s csv: %w", symbol, err)
	}
	if len(rows) == 0 {
		return NewSeries(symbol, nil), nil
	}
	if !strings.EqualFold(rows[0][0], "date") {
		return nil, fmt.Errorf("%s csv: missing header", symbol)
	}

	bars := make([]Bar, 0, len(rows)-1)
	for i, row := range rows[1:] {
		bar, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s csv line %d: %w", symbol, i+2, err)
		}
		bars = append(bars, bar)
	}
	return NewSeries(symbol, bars), nil
}

func parseRow(row []string) (Bar, error) {
	raw := strings.TrimSpace(row[0])
	if len(raw) > 10 {
		raw = raw[:10] // tolerate "2024-01-02 00:00:00+05:30"
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return Bar{}, fmt.Errorf("date: %w", err)
	}

	vals := make([]float64, 5)
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("%s: %w", csvHeader[i+1], err)
		}
		vals[i] = v
	}

	return Bar{Date: date, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: int64(vals[4])}, nil
}

// WriteCSV writes s in the format ReadCSV accepts
func WriteCSV(w io.Writer, s *Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range s.Bars {
		rec := []string{
			b.Date.Format("2006-01-02"),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadCSV reads every <SYMBOL>.csv in dir into a Repository
func LoadCSV(dir string) (*Repository, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	repo := NewRepository(nil)
	for _, path := range paths {
		symbol := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		s, err := readCSVFile(symbol, path)
		if err != nil {
			return nil, err
		}
		repo.Put(s)
	}
	return repo, nil
}

func readCSVFile(symbol, path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(symbol, f)
}

// SaveCSV writes each series to dir/<SYMBOL>.csv
func SaveCSV(dir string, series map[string]*Series) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for sym, s := range series {
		f, err := os.Create(filepath.Join(dir, sym+".csv"))
		if err != nil {
			return fmt.Errorf("create %s csv: %w", sym, err)
		}
		werr := WriteCSV(f, s)
		cerr := f.Close()
		if werr != nil {
			return fmt.Errorf("write %s csv: %w", sym, werr)
		}
		if cerr != nil {
			return cerr
		}
	}
	return nil
}

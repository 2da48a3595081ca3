package universe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/xcelerator/pkg/httputil"
	"github.com/wonny/xcelerator/pkg/logger"
	"github.com/wonny/xcelerator/pkg/redis"
)

const constituentCSV = "\ufeffCompany Name,Industry,Symbol,Series,ISIN Code\n" +
	"Reliance Industries Ltd.,Oil Gas,RELIANCE,EQ,INE002A01018\n" +
	"Tata Consultancy Services Ltd.,IT,TCS,EQ,INE467B01029\n" +
	"Dummy Holdings,Misc,DUMMYHOLD,EQ,INE000000000\n" +
	"Some Bond,Debt,BONDX,BE,INE111111111\n" +
	"Reliance Industries Ltd.,Oil Gas,RELIANCE,EQ,INE002A01018\n" +
	"Infosys Ltd.,IT,INFY,EQ,INE009A01021\n" +
	"Yes Bank Ltd.,Financial,YESBANK,EQ,INE528G01035\n"

const asmHTML = `<html><body>
<table>
  <thead><tr><th>Sr No</th><th>Symbol</th><th>Security Name</th><th>ASM Stage</th></tr></thead>
  <tbody>
    <tr><td>1</td><td>INFY</td><td>Infosys</td><td>Stage II</td></tr>
    <tr><td>2</td><td>TCS</td><td>Tata Consultancy</td><td>Stage I</td></tr>
    <tr><td>3</td><td> ABC </td><td>Abc Ltd</td><td>Stage IV</td></tr>
  </tbody>
</table>
<table>
  <thead><tr><th>Notice</th></tr></thead>
  <tbody><tr><td>ignored</td></tr></tbody>
</table>
</body></html>`

func TestParseConstituents(t *testing.T) {
	symbols, err := ParseConstituents(strings.NewReader(constituentCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE", "TCS", "INFY", "YESBANK"}, symbols)
}

func TestParseConstituentsNeedsColumns(t *testing.T) {
	_, err := ParseConstituents(strings.NewReader("Name,Code\nA,B\n"))
	assert.Error(t, err)

	_, err = ParseConstituents(strings.NewReader(""))
	assert.Error(t, err)
}

func TestBenchmark(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"nifty500", "^CRSLDX", false},
		{"NIFTY100", "^CNX100", false},
		{"nifty50", "", true},
		{"sensex", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Benchmark(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownUniverse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []string{"nifty100", "nifty500"}, Names())
}

func TestConstituentFile(t *testing.T) {
	f, err := ConstituentFile("nifty500")
	require.NoError(t, err)
	assert.Equal(t, "ind_nifty500list.csv", f)

	_, err = ConstituentFile("niftynext")
	assert.ErrorIs(t, err, ErrUnknownUniverse)
}

func TestParseSurveillanceHTML(t *testing.T) {
	asm, err := ParseSurveillanceHTML(strings.NewReader(asmHTML), ASM)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "INFY"}, asm)

	// outside ASM the stage column does not matter
	gsm, err := ParseSurveillanceHTML(strings.NewReader(asmHTML), GSM)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "INFY", "TCS"}, gsm)

	none, err := ParseSurveillanceHTML(strings.NewReader("<html><body><p>loading</p></body></html>"), ESM)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseSurveillanceJSON(t *testing.T) {
	asm, err := ParseSurveillanceJSON([]byte(`{
		"longterm": {"data": [{"symbol": "INFY", "asmSurvIndicator": "Stage II"}, {"symbol": "TCS", "asmSurvIndicator": "Stage I"}]},
		"shortterm": {"data": [{"symbol": "ABC", "asmSurvIndicator": "Stage I"}, {"symbol": "XYZ", "asmSurvIndicator": "Stage III"}]}
	}`), ASM)
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY", "XYZ"}, asm)

	gsm, err := ParseSurveillanceJSON([]byte(`[{"symbol": "PQR", "gsmStage": "II"}, {"symbol": " "}, {"symbol": "LMN"}]`), GSM)
	require.NoError(t, err)
	assert.Equal(t, []string{"LMN", "PQR"}, gsm)

	_, err = ParseSurveillanceJSON([]byte(`not json`), ESM)
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	day := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	u := Filter("nifty500", "^CRSLDX", day, []string{"A", "B", "C"}, map[string]string{"B": "asm", "Z": "gsm"})

	assert.Equal(t, []string{"A", "C"}, u.Symbols)
	assert.Equal(t, map[string]string{"B": "asm"}, u.Excluded)
	assert.True(t, u.Contains("A"))
	excluded, reason := u.IsExcluded("B")
	assert.True(t, excluded)
	assert.Equal(t, "asm", reason)
}

func TestStatic(t *testing.T) {
	s := NewStatic([]string{"TCS", "^CRSLDX", "INFY", "RELIANCE"}).WithManualExclusions([]string{"RELIANCE"})

	u, err := s.Universe(context.Background(), "nifty500", time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY", "TCS"}, u.Symbols)
	assert.Equal(t, ReasonManual, u.Excluded["RELIANCE"])
	assert.Equal(t, "^CRSLDX", u.Benchmark)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), u.Date)

	_, err = s.Universe(context.Background(), "nifty42", time.Now())
	assert.ErrorIs(t, err, ErrUnknownUniverse)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := httputil.New("nse-test", logger.Nop()).DisableRetry()
	cache := redis.NewCache(redis.Disabled(), "test")
	return NewProvider(client, cache, server.URL+"/", server.URL, logger.Nop())
}

func TestProviderUniverse(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ind_nifty500list.csv":
			w.Write([]byte(constituentCSV))
		case "/reports/asm":
			w.Write([]byte(asmHTML))
		case "/api/reportGSM":
			assert.Equal(t, "true", r.URL.Query().Get("json"))
			w.Write([]byte(`[{"symbol": "RELIANCE"}]`))
		case "/api/reportESM":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}).WithManualExclusions([]string{"YESBANK"})

	u, err := p.Universe(context.Background(), "nifty500", time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{"TCS"}, u.Symbols)
	assert.Equal(t, map[string]string{
		"INFY":     "asm",
		"RELIANCE": "gsm",
		"YESBANK":  ReasonManual,
	}, u.Excluded)
	assert.Equal(t, "^CRSLDX", u.Benchmark)
}

func TestProviderSkipsUnavailableSurveillance(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ind_nifty100list.csv" {
			w.Write([]byte(constituentCSV))
			return
		}
		http.NotFound(w, r)
	})

	u, err := p.Universe(context.Background(), "nifty100", time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE", "TCS", "INFY", "YESBANK"}, u.Symbols)
	assert.Empty(t, u.Excluded)
}

func TestProviderFailsWithoutConstituents(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := p.Universe(context.Background(), "nifty500", time.Now())
	assert.Error(t, err)
}

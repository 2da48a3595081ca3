package universe

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/pkg/httputil"
	"github.com/wonny/xcelerator/pkg/logger"
	"github.com/wonny/xcelerator/pkg/redis"
)

// Exclusion reasons recorded on contracts.Universe
const (
	ReasonManual = "manual"
)

var _ contracts.UniverseProvider = (*Provider)(nil)

// Provider builds a day's universe from NSE constituent lists and surveillance reports
// ⭐ SSOT: universe membership is decided here only
type Provider struct {
	http            *httputil.Client
	cache           *redis.Cache
	archiveURL      string
	surveillanceURL string
	manual          []string
	logger          *logger.Logger
}

// NewProvider creates a universe provider
func NewProvider(http *httputil.Client, cache *redis.Cache, archiveURL, surveillanceURL string, log *logger.Logger) *Provider {
	return &Provider{
		http:            http,
		cache:           cache,
		archiveURL:      strings.TrimRight(archiveURL, "/"),
		surveillanceURL: strings.TrimRight(surveillanceURL, "/"),
		logger:          log.WithComponent("universe"),
	}
}

// WithManualExclusions drops symbols from every universe regardless of surveillance status
func (p *Provider) WithManualExclusions(symbols []string) *Provider {
	p.manual = symbols
	return p
}

// Universe returns constituents of name on date minus surveillance and manual exclusions.
// A failed surveillance fetch is logged and skipped; a failed constituent fetch is an error.
func (p *Provider) Universe(ctx context.Context, name string, date time.Time) (*contracts.Universe, error) {
	bench, err := Benchmark(name)
	if err != nil {
		return nil, err
	}
	day := marketdata.Day(date)

	symbols, err := p.constituents(ctx, name, day)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]string)
	lists := p.surveillance(ctx, day)
	for _, measure := range Measures {
		for _, s := range lists[measure] {
			if _, ok := excluded[s]; !ok {
				excluded[s] = string(measure)
			}
		}
	}
	for _, s := range p.manual {
		excluded[s] = ReasonManual
	}

	u := Filter(name, bench, day, symbols, excluded)

	p.logger.WithFields(map[string]interface{}{
		"universe":     name,
		"date":         day.Format("2006-01-02"),
		"constituents": len(symbols),
		"eligible":     u.Count(),
		"excluded":     len(u.Excluded),
	}).Info("Universe built")

	return u, nil
}

// Filter drops excluded symbols and records why, keeping only exclusions that hit a constituent
func Filter(name, benchmark string, day time.Time, symbols []string, excluded map[string]string) *contracts.Universe {
	u := &contracts.Universe{
		Name:      name,
		Benchmark: benchmark,
		Date:      day,
		Symbols:   make([]string, 0, len(symbols)),
		Excluded:  make(map[string]string),
	}
	for _, s := range symbols {
		if reason, ok := excluded[s]; ok {
			u.Excluded[s] = reason
			continue
		}
		u.Symbols = append(u.Symbols, s)
	}
	return u
}

func (p *Provider) constituents(ctx context.Context, name string, day time.Time) ([]string, error) {
	key := redis.UniverseKey(name, day)
	var cached []string
	if found, err := p.cache.Get(ctx, key, &cached); err != nil {
		p.logger.WithError(err).Warn("Universe cache read failed")
	} else if found && len(cached) > 0 {
		return cached, nil
	}

	file, err := ConstituentFile(name)
	if err != nil {
		return nil, err
	}
	resp, err := p.http.Get(ctx, p.archiveURL+"/"+file)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", file, err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", file, err)
	}
	symbols, err := ParseConstituents(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}

	if err := p.cache.Set(ctx, key, symbols, redis.TTLDaily); err != nil {
		p.logger.WithError(err).Warn("Universe cache write failed")
	}
	return symbols, nil
}

// surveillance returns excluded symbols per measure; failed measures are absent
func (p *Provider) surveillance(ctx context.Context, day time.Time) map[Measure][]string {
	key := redis.SurveillanceKey(day)
	cached := make(map[Measure][]string)
	if found, err := p.cache.Get(ctx, key, &cached); err == nil && found && len(cached) == len(Measures) {
		return cached
	}

	out := make(map[Measure][]string, len(Measures))
	for _, m := range Measures {
		syms, err := p.fetchMeasure(ctx, m)
		if err != nil {
			p.logger.WithError(err).WithField("measure", m).Warn("Surveillance list unavailable, not applied")
			continue
		}
		out[m] = syms
	}

	if len(out) == len(Measures) {
		if err := p.cache.Set(ctx, key, out, redis.TTLDaily); err != nil {
			p.logger.WithError(err).Warn("Surveillance cache write failed")
		}
	}
	return out
}

// fetchMeasure reads the report page first and falls back to the JSON API
// when the page carries no table rows.
func (p *Provider) fetchMeasure(ctx context.Context, m Measure) ([]string, error) {
	resp, err := p.http.Get(ctx, fmt.Sprintf("%s/reports/%s", p.surveillanceURL, m))
	if err == nil {
		if body, readErr := httputil.ReadBody(resp); readErr == nil {
			if syms, parseErr := ParseSurveillanceHTML(bytes.NewReader(body), m); parseErr == nil && len(syms) > 0 {
				return syms, nil
			}
		}
	}

	resp, err = p.http.Get(ctx, fmt.Sprintf("%s/api/report%s?json=true", p.surveillanceURL, strings.ToUpper(string(m))))
	if err != nil {
		return nil, fmt.Errorf("fetch %s report: %w", m, err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch %s report: %w", m, err)
	}
	return ParseSurveillanceJSON(body, m)
}

// Static serves a fixed symbol list, used with offline CSV data
type Static struct {
	symbols []string
	manual  []string
}

// NewStatic creates a provider over symbols, excluding index symbols
func NewStatic(symbols []string) *Static {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if !strings.HasPrefix(s, "^") {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return &Static{symbols: out}
}

// WithManualExclusions drops symbols from every universe
func (s *Static) WithManualExclusions(symbols []string) *Static {
	s.manual = symbols
	return s
}

// Universe implements contracts.UniverseProvider
func (s *Static) Universe(_ context.Context, name string, date time.Time) (*contracts.Universe, error) {
	bench, err := Benchmark(name)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]string, len(s.manual))
	for _, m := range s.manual {
		excluded[m] = ReasonManual
	}
	return Filter(name, bench, marketdata.Day(date), s.symbols, excluded), nil
}

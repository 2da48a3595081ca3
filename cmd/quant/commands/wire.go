package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wonny/xcelerator/internal/external/kite"
	"github.com/wonny/xcelerator/internal/external/yahoo"
	"github.com/wonny/xcelerator/internal/live"
	"github.com/wonny/xcelerator/internal/marketdata"
	"github.com/wonny/xcelerator/internal/metrics"
	"github.com/wonny/xcelerator/internal/notify"
	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/internal/portfolio"
	"github.com/wonny/xcelerator/internal/rebalance"
	"github.com/wonny/xcelerator/internal/selection"
	"github.com/wonny/xcelerator/internal/strategyconfig"
	"github.com/wonny/xcelerator/internal/universe"
	"github.com/wonny/xcelerator/pkg/config"
	"github.com/wonny/xcelerator/pkg/database"
	"github.com/wonny/xcelerator/pkg/httputil"
	"github.com/wonny/xcelerator/pkg/logger"
	"github.com/wonny/xcelerator/pkg/redis"
)

// app holds everything a command needs, built once from env and strategy config
// ⭐ SSOT: components are constructed only here
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	strategy     *strategyconfig.Config
	strategyYAML []byte
	hash         string
	benchmark    string

	db      *database.DB // nil without DATABASE_URL
	redis   *redis.Client
	metrics *metrics.Registry

	yahooHTTP *httputil.Client
	nseHTTP   *httputil.Client
	kiteHTTP  *httputil.Client
}

// newApp loads configuration and opens the shared connections
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if strategyFile != "" {
		cfg.StrategyFile = strategyFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	strategy, raw, err := loadStrategy(cfg.StrategyFile)
	if err != nil {
		return nil, fmt.Errorf("load strategy %s: %w", cfg.StrategyFile, err)
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return nil, fmt.Errorf("hash strategy: %w", err)
	}
	benchmark, err := universe.Benchmark(strategy.Universe.Name)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:          cfg,
		log:          log,
		strategy:     strategy,
		strategyYAML: raw,
		hash:         hash,
		benchmark:    benchmark,
		redis:        redis.Disabled(),
	}

	if cfg.HasDatabase() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
	}

	if cfg.CacheEnabled {
		rc, err := redis.New(ctx, cfg)
		if err != nil {
			// the cache is optional; run uncached
			log.WithError(err).Warn("Redis unavailable, caching disabled")
		} else {
			a.redis = rc
		}
	}

	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	a.yahooHTTP = httputil.New("yahoo", log).WithRateLimit(5, 5)
	a.nseHTTP = httputil.New("nse", log).
		WithRateLimit(2, 2).
		WithHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)").
		WithHeader("Accept-Language", "en-US,en;q=0.9")
	a.kiteHTTP = httputil.New("kite", log)

	log.WithFields(map[string]interface{}{
		"env":         cfg.Env,
		"strategy":    strategy.Meta.StrategyID,
		"config_hash": hash[:12],
		"universe":    strategy.Universe.Name,
		"database":    a.db != nil,
		"cache":       a.redis.Enabled(),
	}).Debug("Application initialized")

	return a, nil
}

func loadStrategy(path string) (*strategyconfig.Config, []byte, error) {
	if path == "" {
		return strategyconfig.Default(), nil, nil
	}
	return strategyconfig.Load(path)
}

// close releases connections
func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Redis close failed")
	}
}

// session builds the rebalance session from the strategy config
func (a *app) session() (*rebalance.Session, error) {
	return a.sessionWith(a.strategy.Ranking.Weights.Slice(), a.log)
}

// sessionWith builds a session ranking with weights and logging to log
func (a *app) sessionWith(weights []float64, log *logger.Logger) (*rebalance.Session, error) {
	classifier, err := portfolio.NewClassifier(a.strategy.ClassifierConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	allocator, err := planner.NewAllocator(a.strategy.AllocatorConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("allocator: %w", err)
	}
	return rebalance.NewSession(
		selection.NewRanker(selection.NewScreener(a.strategy.ScreenerConfig(), log), log),
		selection.NewRegimeDetector(a.strategy.RegimeConfig(), log),
		classifier,
		allocator,
		rebalance.Config{Benchmark: a.benchmark, Weights: weights},
		log,
	), nil
}

func (a *app) ranker() *selection.Ranker {
	return selection.NewRanker(selection.NewScreener(a.strategy.ScreenerConfig(), a.log), a.log)
}

// Redis cache namespaces
const (
	cachePrices   = "prices"
	cacheUniverse = "universe"
)

// backtestDir is the default backtest output directory under DATA_DIR
const backtestDir = "backtest"

// cache returns a namespaced Redis cache; a disabled client makes it a no-op
func (a *app) cache(prefix string) *redis.Cache {
	return redis.NewCache(a.redis, prefix)
}

// yahoo returns the Yahoo chart client
func (a *app) yahoo() *yahoo.Client {
	return yahoo.NewClient(a.yahooHTTP, a.cfg.Yahoo.BaseURL, a.log)
}

// livePrices fetches fresh bars from Yahoo behind the Redis cache
func (a *app) livePrices() marketdata.Provider {
	return marketdata.NewCachedProvider(a.yahoo(), a.cache(cachePrices), redis.TTLIntraday, a.log)
}

// storedPrices returns the offline bar store: Postgres when configured, else the CSV directory
func (a *app) storedPrices() (marketdata.Provider, *marketdata.Repository, error) {
	if a.db != nil {
		return marketdata.NewPGStore(a.db.Pool), nil, nil
	}
	if _, err := os.Stat(a.cfg.DataDir); err != nil {
		return nil, nil, fmt.Errorf("no DATABASE_URL and data dir %s unreadable: %w", a.cfg.DataDir, err)
	}
	repo, err := marketdata.LoadCSV(a.cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo, nil
}

// universe returns the NSE-backed universe provider
func (a *app) universe() *universe.Provider {
	return universe.NewProvider(a.nseHTTP, a.cache(cacheUniverse), a.cfg.NSE.ArchiveURL, a.cfg.NSE.SurveillanceURL, a.log).
		WithManualExclusions(a.strategy.Universe.Exclude)
}

// broker returns the Kite client. Order placement is never retried and is
// throttled by the shared Redis limiter when Redis is up.
func (a *app) broker() (*kite.Client, error) {
	orders := httputil.New("kite-orders", a.log).DisableRetry().WithRateLimit(10, 1)
	if a.redis.Enabled() {
		orders.WithSharedRateLimit(redis.NewRateLimiter(a.redis, "ratelimit"), redis.KiteOrderLimit)
	}
	return kite.NewClient(a.cfg.Kite, a.kiteHTTP, orders, a.log)
}

// notifier returns the WhatsApp notifier, nil when disabled
func (a *app) notifier() (live.Notifier, error) {
	if !a.cfg.Twilio.Enabled {
		return nil, nil
	}
	client := httputil.New("twilio", a.log).DisableRetry().WithTimeout(15 * time.Second)
	wa, err := notify.NewWhatsApp(a.cfg.Twilio, client, a.log)
	if err != nil {
		return nil, err
	}
	return wa, nil
}

// planStore persists live reports in Postgres, or in memory without a database
func (a *app) planStore() live.Store {
	if a.db != nil {
		return live.NewPGStore(a.db.Pool)
	}
	return live.NewMemoryStore()
}

// runner wires the live rebalance runner over store
func (a *app) runner(store live.Store) (*live.Runner, error) {
	session, err := a.session()
	if err != nil {
		return nil, err
	}
	broker, err := a.broker()
	if err != nil {
		return nil, fmt.Errorf("kite: %w", err)
	}
	notifier, err := a.notifier()
	if err != nil {
		return nil, fmt.Errorf("whatsapp: %w", err)
	}
	return live.NewRunner(
		broker,
		a.livePrices(),
		a.universe(),
		session,
		store,
		notifier,
		a.metrics,
		live.Config{
			Universe:     a.strategy.Universe.Name,
			Benchmark:    a.benchmark,
			LookbackDays: a.strategy.Backtest.LookbackDays,
			OutputDir:    a.cfg.DataDir,
			ConfigHash:   a.hash,
		},
		a.log,
	), nil
}

// location is the strategy timezone
func (a *app) location() *time.Location {
	return a.strategy.Location()
}

// parseDate parses YYYY-MM-DD in the strategy timezone; empty means today
func (a *app) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().In(a.location()), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, a.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

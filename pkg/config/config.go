package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Kite   KiteConfig
	Yahoo  YahooConfig
	NSE    NSEConfig
	Twilio TwilioConfig

	// Strategy
	StrategyFile string // YAML strategy config, empty = built-in defaults
	DataDir      string // per-symbol CSV directory and plan output
	CacheEnabled bool

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// KiteConfig holds Zerodha Kite Connect configuration
type KiteConfig struct {
	APIKey      string
	AccessToken string
	BaseURL     string
}

// YahooConfig holds the chart API endpoint used for daily bars
type YahooConfig struct {
	BaseURL string
}

// NSEConfig holds NSE archive and surveillance endpoints
type NSEConfig struct {
	ArchiveURL      string // index constituent CSVs
	SurveillanceURL string // ASM/GSM/ESM listing page
}

// TwilioConfig holds WhatsApp notification configuration
type TwilioConfig struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	From       string
	To         string
	BaseURL    string
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only caller of os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("API_PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Kite: KiteConfig{
			APIKey:      getEnv("KITE_API_KEY", ""),
			AccessToken: getEnv("KITE_ACCESS_TOKEN", ""),
			BaseURL:     getEnv("KITE_BASE_URL", "https://api.kite.trade"),
		},

		Yahoo: YahooConfig{
			BaseURL: getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		},

		NSE: NSEConfig{
			ArchiveURL:      getEnv("NSE_ARCHIVE_URL", "https://nsearchives.nseindia.com/content/indices"),
			SurveillanceURL: getEnv("NSE_SURVEILLANCE_URL", "https://www.nseindia.com"),
		},

		Twilio: TwilioConfig{
			Enabled:    getEnvAsBool("ENABLE_TWILIO_WHATSAPP", false),
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			From:       getEnv("TWILIO_WHATSAPP_FROM", ""),
			To:         getEnv("TWILIO_WHATSAPP_TO", ""),
			BaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		},

		StrategyFile: getEnv("STRATEGY_FILE", ""),
		DataDir:      getEnv("DATA_DIR", "data"),
		CacheEnabled: getEnvAsBool("CACHE", true),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
// DATABASE_URL is optional: without it the CLI falls back to CSV data.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Twilio.Enabled && (c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.To == "") {
		return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_TO are required when ENABLE_TWILIO_WHATSAPP is set")
	}

	return nil
}

// HasDatabase reports whether a PostgreSQL price store is configured
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasKite reports whether live broker credentials are present
func (c *Config) HasKite() bool {
	return c.Kite.APIKey != "" && c.Kite.AccessToken != ""
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

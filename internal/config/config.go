package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/retry"
)

const (
	defaultTimezone   = "Asia/Seoul"
	configPathEnv     = "FINANCE_COLLECTOR_CONFIG"
	dartAPIKeyEnv     = "DART_API_KEY"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	geminiModelEnv    = "GEMINI_MODEL"
	marketAPIKeyEnv   = "MARKETDATA_API_KEY"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Collector     CollectorConfig    `yaml:"collector"`
	DART          DARTConfig         `yaml:"dart"`
	MarketData    MarketDataConfig   `yaml:"marketData"`
	Portal        PortalConfig       `yaml:"portal"`
	Cache         CacheConfig        `yaml:"cache"`
	Gemini        GeminiConfig       `yaml:"gemini"`
	Retry         RetryConfig        `yaml:"retry"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Output        OutputConfig       `yaml:"output"`
}

// LoggingConfig selects level and destination. Output is stdout, stderr or a file path.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

// CollectorConfig sizes one collection run.
type CollectorConfig struct {
	Market      string        `yaml:"market"`
	Count       int           `yaml:"count"`
	Workers     int           `yaml:"workers"`
	FiscalYear  int           `yaml:"fiscalYear"`
	Lookback    int           `yaml:"lookback"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// DARTConfig points at the electronic disclosure API.
type DARTConfig struct {
	APIKey    string        `yaml:"apiKey"`
	BaseURL   string        `yaml:"baseUrl"`
	RateLimit float64       `yaml:"rateLimit"`
	Timeout   time.Duration `yaml:"timeout"`
}

// MarketDataConfig points at the price and listing API.
type MarketDataConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"apiKey"`
	RateLimit float64       `yaml:"rateLimit"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PortalConfig controls finance portal scraping.
type PortalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"baseUrl"`
	RateLimit float64       `yaml:"rateLimit"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig selects the filing cache backend.
type CacheConfig struct {
	Driver     string `yaml:"driver"`
	Dir        string `yaml:"dir"`
	DSN        string `yaml:"dsn"`
	Table      string `yaml:"table"`
	RetainDays int    `yaml:"retainDays"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	Enabled      bool    `yaml:"enabled"`
	APIKey       string  `yaml:"apiKey"`
	Model        string  `yaml:"model"`
	BaseURL      string  `yaml:"baseUrl"`
	SystemPrompt string  `yaml:"systemPrompt"`
	Temperature  float32 `yaml:"temperature"`
	Rows         int     `yaml:"rows"`
}

// RetryConfig bounds retries of throttled calls.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	BaseDelay      time.Duration `yaml:"baseDelay"`
	HonorSuggested bool          `yaml:"honorSuggested"`
}

// Policy converts the settings into a retry policy with linear backoff.
func (r RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelay > 0 {
		p.Backoff = retry.Linear(r.BaseDelay)
	}
	p.HonorSuggested = r.HonorSuggested
	return p
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	APIURL   string `yaml:"apiUrl"`
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SchedulerConfig defines when the daily collection should run.
type SchedulerConfig struct {
	Enabled  bool           `yaml:"enabled"`
	RunAt    string         `yaml:"runAt"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// OutputConfig selects where the dataset is written.
type OutputConfig struct {
	Path     string `yaml:"path"`
	Encoding string `yaml:"encoding"`
}

// Load reads YAML configuration (if present) over the defaults, applies
// environment overrides and validates the result.
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Market returns the configured collection market.
func (c Config) Market() domain.Market {
	m, err := domain.ParseMarket(c.Collector.Market)
	if err != nil {
		return domain.MarketKOSPI
	}
	return m
}

// Validate reports every setting that prevents a run.
func (c Config) Validate() error {
	var errs []error
	if c.DART.APIKey == "" {
		errs = append(errs, fmt.Errorf("dart.apiKey (or %s) is required", dartAPIKeyEnv))
	}
	if c.MarketData.Endpoint == "" {
		errs = append(errs, errors.New("marketData.endpoint is required"))
	}
	if _, err := domain.ParseMarket(c.Collector.Market); err != nil {
		errs = append(errs, fmt.Errorf("collector.market: %w", err))
	}
	if c.Collector.Workers < 1 {
		errs = append(errs, errors.New("collector.workers must be at least 1"))
	}
	if c.Collector.Count < 0 {
		errs = append(errs, errors.New("collector.count must not be negative"))
	}
	switch c.Cache.Driver {
	case "file":
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("cache.dir is required for the file driver"))
		}
	case "postgres":
		if c.Cache.DSN == "" {
			errs = append(errs, fmt.Errorf("cache.dsn (or %s) is required for the postgres driver", databaseDSNEnv))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("cache.driver %q is not one of file, postgres, none", c.Cache.Driver))
	}
	if c.Gemini.Enabled && c.Gemini.APIKey == "" {
		errs = append(errs, fmt.Errorf("gemini.apiKey (or %s) is required when gemini is enabled", geminiAPIKeyEnv))
	}
	if c.Scheduler.Enabled {
		if _, err := time.Parse("15:04", c.Scheduler.RunAt); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.runAt %q is not HH:MM", c.Scheduler.RunAt))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dartAPIKeyEnv); v != "" {
		c.DART.APIKey = v
	}

	if v := os.Getenv(marketAPIKeyEnv); v != "" {
		c.MarketData.APIKey = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Cache.DSN = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}

	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() error {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("scheduler.timezone %q: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Output: "stdout", MaxSizeMB: 50, MaxAgeDays: 14, MaxBackups: 5},
		Collector: CollectorConfig{
			Market:      string(domain.MarketKOSPI),
			Count:       100,
			Workers:     5,
			Lookback:    1,
			CallTimeout: 10 * time.Second,
		},
		DART: DARTConfig{
			BaseURL:   "https://opendart.fss.or.kr/api",
			RateLimit: 5,
			Timeout:   10 * time.Second,
		},
		MarketData: MarketDataConfig{RateLimit: 10, Timeout: 10 * time.Second},
		Portal: PortalConfig{
			Enabled:   true,
			BaseURL:   "https://finance.naver.com",
			RateLimit: 5,
			Timeout:   5 * time.Second,
		},
		Cache: CacheConfig{Driver: "file", Dir: "cache", Table: "filing_cache", RetainDays: 7},
		Gemini: GeminiConfig{
			Model:        "gemini-2.5-flash",
			SystemPrompt: "You are a quantitative equity analyst covering the Korean stock market.",
			Temperature:  0.2,
			Rows:         30,
		},
		Retry:     RetryConfig{MaxAttempts: 3, BaseDelay: 5 * time.Second},
		Scheduler: SchedulerConfig{RunAt: "18:30", Timezone: defaultTimezone},
		Output:    OutputConfig{Path: "output/dataset_{day}.csv", Encoding: "utf-8"},
	}
}

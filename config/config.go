package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Provider kinds for page automation.
const (
	ProviderBrowser = "browser"
	ProviderHTTP    = "http"
)

// Price match policies.
const (
	MatchFirst   = "first"
	MatchLargest = "largest"
)

// Config represents the application configuration
type Config struct {
	// File paths
	WatchlistPath string
	HistoryPath   string
	PriceLogPath  string
	ChartPath     string
	ScreenshotDir string

	// Scheduler configuration
	Concurrency     int
	NavTimeout      time.Duration
	SelectorTimeout time.Duration
	PickTimeout     time.Duration
	SettleDelay     time.Duration

	// Page automation
	Provider string
	Headless bool

	// Price extraction
	PriceMatch string

	// Notification transports
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	NotifyEmail string

	// Observation publishing (disabled when RedisAddr is empty)
	RedisAddr      string
	RedisDB        int
	RedisStream    string
	RedisStreamMax int

	// Fetch cooldown cache (disabled when MemcacheAddr is empty)
	MemcacheAddr  string
	FetchCooldown time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	concurrency, _ := strconv.Atoi(getEnv("CONCURRENCY", "5"))
	navTimeout, _ := strconv.Atoi(getEnv("NAV_TIMEOUT_SECONDS", "60"))
	selTimeout, _ := strconv.Atoi(getEnv("SELECTOR_TIMEOUT_SECONDS", "15"))
	pickTimeout, _ := strconv.Atoi(getEnv("PICK_TIMEOUT_SECONDS", "120"))
	settleDelay, _ := strconv.Atoi(getEnv("SETTLE_DELAY_MS", "5000"))
	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamMax, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAXLEN", "500"))
	fetchCooldown, _ := strconv.Atoi(getEnv("FETCH_COOLDOWN_SECONDS", "30"))

	smtpUser := getEnv("SMTP_USER", "")

	return Config{
		WatchlistPath:   getEnv("WATCHLIST_PATH", "./watchlist.json"),
		HistoryPath:     getEnv("HISTORY_PATH", "./price-history.json"),
		PriceLogPath:    getEnv("PRICE_LOG_PATH", "./price-log.csv"),
		ChartPath:       getEnv("CHART_PATH", "./price-chart.html"),
		ScreenshotDir:   getEnv("SCREENSHOT_DIR", "./errors"),
		Concurrency:     concurrency,
		NavTimeout:      time.Duration(navTimeout) * time.Second,
		SelectorTimeout: time.Duration(selTimeout) * time.Second,
		PickTimeout:     time.Duration(pickTimeout) * time.Second,
		SettleDelay:     time.Duration(settleDelay) * time.Millisecond,
		Provider:        getEnv("PROVIDER", ProviderBrowser),
		Headless:        getEnv("HEADLESS", "true") != "false",
		PriceMatch:      getEnv("PRICE_MATCH", MatchFirst),
		SMTPHost:        getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:        smtpPort,
		SMTPUser:        smtpUser,
		SMTPPass:        getEnv("SMTP_PASSWORD", ""),
		NotifyEmail:     getEnv("NOTIFY_EMAIL", smtpUser),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisDB:         redisDB,
		RedisStream:     getEnv("REDIS_STREAM", "observations"),
		RedisStreamMax:  redisStreamMax,
		MemcacheAddr:    getEnv("MEMCACHE_ADDR", ""),
		FetchCooldown:   time.Duration(fetchCooldown) * time.Second,
		Environment:     getEnv("PRICEWATCH_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	if c.WatchlistPath == "" {
		return fmt.Errorf("watchlist path must not be empty")
	}
	if c.HistoryPath == "" {
		return fmt.Errorf("history path must not be empty")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Provider != ProviderBrowser && c.Provider != ProviderHTTP {
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.PriceMatch != MatchFirst && c.PriceMatch != MatchLargest {
		return fmt.Errorf("unknown price match policy %q", c.PriceMatch)
	}
	if c.NavTimeout <= 0 || c.SelectorTimeout <= 0 || c.PickTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

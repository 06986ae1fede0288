package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mkessler/pricewatch/config"
	"mkessler/pricewatch/internal/browser"
	"mkessler/pricewatch/internal/chart"
	"mkessler/pricewatch/internal/watch"
	"mkessler/pricewatch/logger"
	"mkessler/pricewatch/services/cache"
	"mkessler/pricewatch/services/notify"
	"mkessler/pricewatch/services/publisher"
	"mkessler/pricewatch/services/scheduler"
	"mkessler/pricewatch/services/selector"
	"mkessler/pricewatch/services/store"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if len(os.Args) > 1 && os.Args[1] == "chart" {
		os.Exit(renderChart(cfg))
	}

	os.Exit(run(cfg))
}

// run executes one monitoring pass and returns the process exit code.
func run(cfg config.Config) int {
	log := logger.Default

	log.Info().
		Str("environment", cfg.Environment).
		Str("provider", cfg.Provider).
		Int("concurrency", cfg.Concurrency).
		Msg("Starting price check pass")

	// Set up context with signal-driven cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load durable state before touching the network
	watchlist := store.NewWatchlist(cfg.WatchlistPath)
	items, err := watchlist.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load watchlist")
		return 1
	}
	if len(items) == 0 {
		log.Warn().Msg("Watchlist is empty, nothing to do")
		return 0
	}

	history := store.NewHistory(cfg.HistoryPath, cfg.PriceLogPath)
	if err := history.Load(); err != nil {
		log.Error().Err(err).Msg("Failed to load history")
		return 1
	}

	// Page automation provider
	provider, interactive, err := newProvider(cfg, items)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start page automation provider")
		return 1
	}
	defer provider.Close()

	// Fill selector gaps through the interactive pick
	if interactive {
		resolver := selector.NewResolver(provider, watchlist, cfg.NavTimeout, cfg.PickTimeout)
		items, err = resolver.Resolve(ctx, items)
		if err != nil {
			log.Error().Err(err).Msg("Failed to persist discovered selectors")
			return 1
		}
	} else if missingSelectors(items) {
		log.Warn().Msg("Items without selectors are skipped; interactive pick needs PROVIDER=browser")
	}

	// Notification transports
	transports := []notify.Notifier{notify.NewDesktopNotifier()}
	if cfg.SMTPUser != "" {
		transports = append(transports, notify.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.NotifyEmail))
	} else {
		log.Debug().Msg("SMTP not configured, email notifications disabled")
	}
	dispatcher := notify.NewDispatcher(transports...)

	// Observation publisher
	var pub publisher.Publisher
	if cfg.RedisAddr != "" {
		redisPub := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMax)
		defer redisPub.Close()
		pub = redisPub
		log.Info().Str("addr", cfg.RedisAddr).Str("stream", cfg.RedisStream).Msg("Publishing observations to Redis")
	}

	// Run the pass
	sched := scheduler.New(provider, newExtractor(cfg), history, dispatcher, pub, scheduler.Options{
		Concurrency:     cfg.Concurrency,
		NavTimeout:      cfg.NavTimeout,
		SelectorTimeout: cfg.SelectorTimeout,
		SettleDelay:     cfg.SettleDelay,
		ScreenshotDir:   cfg.ScreenshotDir,
	})
	results := sched.Run(ctx, items)

	report := watch.NewReport(results)
	os.Stdout.WriteString(report.Summary() + "\n")

	// Durability barrier: flush only after all checks have settled
	if err := history.Flush(); err != nil {
		log.Error().Err(err).Msg("Failed to flush history")
		return 1
	}

	return report.ExitCode()
}

// renderChart transforms the persisted history into the HTML chart page.
func renderChart(cfg config.Config) int {
	log := logger.Default

	history := store.NewHistory(cfg.HistoryPath, "")
	if err := history.Load(); err != nil {
		log.Error().Err(err).Msg("Failed to load history")
		return 1
	}

	if err := chart.WriteFile(cfg.ChartPath, history.Series()); err != nil {
		log.Error().Err(err).Msg("Failed to write chart")
		return 1
	}

	log.Info().Str("path", cfg.ChartPath).Msg("Chart written")
	return 0
}

// newProvider builds the configured page-automation provider. The second
// return value reports whether the provider can host interactive picks.
func newProvider(cfg config.Config, items []watch.Item) (browser.Provider, bool, error) {
	switch cfg.Provider {
	case config.ProviderHTTP:
		var cacheSvc cache.CacheService
		if cfg.MemcacheAddr != "" {
			cacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr)
			logger.Info("Fetch cooldown via memcache at %s", cfg.MemcacheAddr)
		}
		return browser.NewHTTPProvider(cacheSvc, cfg.FetchCooldown), false, nil
	default:
		// Picking needs a visible window, so headless only applies when
		// every item already has a selector.
		headless := cfg.Headless && !missingSelectors(items)
		p, err := browser.NewRodProvider(headless)
		if err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
}

func missingSelectors(items []watch.Item) bool {
	for _, item := range items {
		if !item.HasSelector() {
			return true
		}
	}
	return false
}

func newExtractor(cfg config.Config) watch.Extractor {
	policy := watch.MatchFirst
	if cfg.PriceMatch == config.MatchLargest {
		policy = watch.MatchLargest
	}
	return watch.Extractor{Policy: policy}
}

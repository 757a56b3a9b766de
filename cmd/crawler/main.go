package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"prodcrawl/internal/browser"
	"prodcrawl/internal/config"
	"prodcrawl/internal/crawler"
	"prodcrawl/internal/currency"
	"prodcrawl/internal/identity"
	"prodcrawl/internal/imagefilter"
	"prodcrawl/internal/ingest"
	"prodcrawl/internal/metrics"
	"prodcrawl/internal/notify"
	"prodcrawl/internal/platform"
	"prodcrawl/internal/storage"
)

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	if err := cfg.ValidateCrawler(); err != nil {
		log.WithError(err).Error("Invalid crawler configuration")
		os.Exit(1)
	}

	os.Exit(run(cfg, log))
}

// run returns the process exit code. Only startup failures are non-zero;
// skipped items never fail the run.
func run(cfg config.Config, log *logrus.Logger) int {
	// Stop signals are honored between items.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, _ := cfg.Platform()
	mode, _ := cfg.Mode()
	adapter, err := platform.NewRegistry(log).Get(p)
	if err != nil {
		log.WithError(err).Error("No adapter for platform")
		return 1
	}

	log.WithFields(logrus.Fields{
		"platform":        p,
		"mode":            mode,
		"storage_backend": cfg.StorageBackend,
		"pacing":          cfg.CrawlPacingDelay.String(),
	}).Info("Configuration loaded successfully")

	// --- Initialize Components ---
	repo, err := storage.NewRepository(ctx, storage.FactoryConfig{
		Backend:      cfg.StorageBackend,
		BadgerPath:   cfg.BadgerDBPath,
		PostgresDSN:  cfg.PostgresDSN,
		PostgresConn: cfg.PostgresMaxConns,
	}, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize storage")
		return 1
	}
	defer func() {
		if gc, ok := repo.(interface{ RunGC() }); ok {
			gc.RunGC()
		}
		log.Info("Closing storage...")
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing storage")
		}
	}()

	notifier, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize notifier")
		return 1
	}

	rules := imagefilter.DefaultRules().Extend(
		config.SplitList(cfg.ImageBlockedHosts),
		config.SplitList(cfg.ImageBlockedPaths),
	)
	rules.MinDimension = cfg.ImageMinDimension

	fx := currency.NewConverter(
		currency.NewHTTPSource(cfg.FXEndpoint, 15*time.Second),
		cfg.FXDisplayCurrency,
		cfg.FXRefreshInterval,
		log,
	)
	pipeline := ingest.NewPipeline(
		imagefilter.New(rules),
		fx,
		identity.NewResolver(repo),
		ingest.NewUpserter(repo, log),
		ingest.Options{Featured: cfg.CrawlFeatured, CategoryRef: cfg.CrawlCategoryRef},
		log,
	)

	session, err := browser.Launch(browser.Options{
		Bin:         cfg.BrowserBin,
		Headless:    cfg.BrowserHeadless,
		PageTimeout: cfg.CrawlPageTimeout,
		UserAgent:   cfg.BrowserUserAgent,
	}, log)
	if err != nil {
		log.WithError(err).Error("Failed to start browser session")
		return 1
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.WithError(err).Error("Error closing browser session")
		}
	}()

	// --- Crawl ---
	orch := crawler.New(session, adapter, pipeline, cfg.CrawlPacingDelay, log)
	report, err := orch.Run(ctx, crawler.Plan{
		Mode:       mode,
		Params:     cfg.CrawlParams(),
		MaxReviews: cfg.CrawlMaxReviews,
	})
	if err != nil {
		log.WithError(err).Error("Crawl run could not start")
		return 1
	}

	// The run context may already be cancelled; reporting gets its own budget.
	reportCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := notifier.CrawlFinished(reportCtx, report); err != nil {
		log.WithError(err).Warn("Run summary not delivered")
	}
	if err := metrics.Push(cfg.MetricsPushgatewayURL, "prodcrawl_crawler"); err != nil {
		log.WithError(err).Warn("Metrics push failed")
	}

	log.Info("Crawler shut down gracefully.")
	return 0
}

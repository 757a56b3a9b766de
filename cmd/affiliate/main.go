package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"prodcrawl/internal/affiliate"
	"prodcrawl/internal/config"
	"prodcrawl/internal/domain"
	"prodcrawl/internal/metrics"
	"prodcrawl/internal/notify"
	"prodcrawl/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if err := cfg.ValidateAffiliate(); err != nil {
		log.WithError(err).Error("Invalid affiliate configuration")
		os.Exit(1)
	}
	os.Exit(run(cfg, log))
}

func run(cfg config.Config, log *logrus.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing storage")
		}
	}()

	notifier, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize notifier")
		return 1
	}

	client := affiliate.NewClient(affiliate.Config{
		Endpoint:    cfg.AffiliateEndpoint,
		AppKey:      cfg.AffiliateAppKey,
		AppSecret:   cfg.AffiliateAppSecret,
		TrackingID:  cfg.AffiliateTrackingID,
		MaxAttempts: cfg.AffiliateMaxAttempts,
		BaseBackoff: cfg.AffiliateBaseBackoff,
		RPS:         cfg.AffiliateRPS,
	}, log)
	gen := affiliate.NewGenerator(client, repo, log)

	var (
		stored int
		links  affiliate.LinkReport
		runErr error
	)
	switch cfg.AffiliateMode {
	case "search":
		stored, runErr = gen.SyncProducts(ctx, affiliate.SearchParams{
			Keywords:       cfg.AffiliateKeywords,
			CategoryIDs:    cfg.AffiliateCategoryIDs,
			PageSize:       cfg.AffiliatePageSize,
			TargetCurrency: "USD",
		}, cfg.AffiliatePages)
		log.WithField("stored", stored).Info("Affiliate search finished")

	case "link":
		products, err := repo.ListProducts(ctx, domain.PlatformAliExpress, 0)
		if err != nil {
			log.WithError(err).Error("Failed to list products")
			return 1
		}
		links, runErr = gen.LinkMissing(ctx, products)
		log.WithFields(logrus.Fields{
			"created":  links.Created,
			"existing": links.Existing,
			"failed":   links.Failed,
		}).Info("Affiliate link pass finished")
	}
	if runErr != nil {
		log.WithError(runErr).Error("Affiliate pass stopped early")
	}

	reportCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := notifier.AffiliateFinished(reportCtx, cfg.AffiliateMode, stored, links, runErr); err != nil {
		log.WithError(err).Warn("Affiliate summary not delivered")
	}
	if err := metrics.Push(cfg.MetricsPushgatewayURL, "prodcrawl_affiliate"); err != nil {
		log.WithError(err).Warn("Metrics push failed")
	}
	return 0
}

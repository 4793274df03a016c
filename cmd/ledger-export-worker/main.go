package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/walletcore/internal/ledgerexport"
	"github.com/angelmondragon/walletcore/pkg/bigquery"
	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/instance"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/outbox/idempotency"
	"github.com/angelmondragon/walletcore/pkg/pubsub"
	"github.com/angelmondragon/walletcore/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "ledger-export-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "ledger-export-worker"

	logg = logger.New(logger.Options{
		ServiceName: "ledger-export-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery client", err)
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "failed to close bigquery client", err)
		}
	}()

	subscription := pubsubClient.LedgerExportSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "ledger export subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.ForConsumer(redisClient, ledgerexport.ConsumerName, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "processed event marker", err)

	writer, err := ledgerexport.NewWriter(bqClient, ledgerexport.WriterConfig{Table: cfg.BigQuery.LedgerTable})
	requireResource(ctx, logg, "ledger bigquery writer", err)

	service, err := ledgerexport.NewService(ledgerexport.ServiceParams{
		Subscription: subscription,
		Writer:       writer,
		Idempotency:  manager,
		Logger:       logg,
	})
	requireResource(ctx, logg, "ledger export service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(runCtx, "ledger export worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "ledger export worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/walletcore/api/routes"
	"github.com/angelmondragon/walletcore/internal/ads"
	"github.com/angelmondragon/walletcore/internal/escrow"
	"github.com/angelmondragon/walletcore/internal/ledger"
	"github.com/angelmondragon/walletcore/internal/payments"
	"github.com/angelmondragon/walletcore/internal/reconciliation"
	"github.com/angelmondragon/walletcore/internal/users"
	"github.com/angelmondragon/walletcore/internal/wallets"
	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/db"
	"github.com/angelmondragon/walletcore/pkg/instance"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/metrics"
	"github.com/angelmondragon/walletcore/pkg/migrate"
	"github.com/angelmondragon/walletcore/pkg/outbox"
	"github.com/angelmondragon/walletcore/pkg/outbox/idempotency"
	"github.com/angelmondragon/walletcore/pkg/redis"
	"github.com/angelmondragon/walletcore/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.ApplyOnBoot(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to apply schema on boot", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	walletMetrics := metrics.NewWalletMetrics(registry)

	platformUserID, err := parsePlatformUserID(cfg.Marketplace.PlatformUserID)
	if err != nil {
		logg.Error(context.Background(), "invalid platform user id", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	ledgerService, err := ledger.NewService(ledger.NewRepository(conn), dbClient, outboxService)
	mustBuild(logg, "ledger service", err)

	walletRepo := wallets.NewRepository(conn)
	walletService, err := wallets.NewService(walletRepo)
	mustBuild(logg, "wallet service", err)

	mutator, err := wallets.NewMutator(wallets.MutatorParams{
		Repository:  walletRepo,
		DB:          dbClient,
		Logger:      logg,
		Metrics:     walletMetrics,
		MaxAttempts: cfg.Wallet.MutatorMaxAttempts,
		Backoff:     cfg.Wallet.RetryBackoff,
		Timeout:     cfg.Wallet.MutationTimeout,
	})
	mustBuild(logg, "wallet mutator", err)

	poster, err := wallets.NewPoster(wallets.PosterParams{
		DB:      dbClient,
		Mutator: mutator,
		Ledger:  ledgerService,
		Logger:  logg,
		Metrics: walletMetrics,
	})
	mustBuild(logg, "wallet poster", err)

	usersService, err := users.NewService(users.NewRepository(conn))
	mustBuild(logg, "users service", err)

	policy, err := escrow.NewConfigPolicy(cfg.Marketplace, usersService)
	mustBuild(logg, "marketplace policy", err)

	escrowService, err := escrow.NewService(escrow.ServiceParams{
		Repository:     escrow.NewRepository(conn),
		DB:             dbClient,
		Poster:         poster,
		Outbox:         outboxService,
		Policy:         policy,
		Logger:         logg,
		PlatformUserID: platformUserID,
	})
	mustBuild(logg, "escrow service", err)

	adsService, err := ads.NewService(ads.NewRepository(conn), dbClient, outboxService)
	mustBuild(logg, "ads service", err)

	premiumGuard, err := idempotency.NewMarker(redisClient, "premium_gateway", cfg.Payments.GatewayIdempotencyTTL)
	mustBuild(logg, "premium idempotency guard", err)
	fundingGuard, err := idempotency.NewMarker(redisClient, "wallet_funding", cfg.Payments.GatewayIdempotencyTTL)
	mustBuild(logg, "funding idempotency guard", err)

	var verifier payments.Verifier
	if strings.TrimSpace(cfg.Square.AccessToken) == "" {
		logg.Warn(context.Background(), "square access token not set; gateway payments disabled")
	} else {
		squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
		mustBuild(logg, "square client", err)
		squareVerifier, err := payments.NewSquareVerifier(squareClient)
		mustBuild(logg, "square verifier", err)
		verifier = squareVerifier
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Poster:         poster,
		Ledger:         ledgerService,
		Wallets:        walletService,
		Claims:         payments.NewClaimRepository(conn),
		Campaigns:      adsService,
		Premium:        usersService,
		DB:             dbClient,
		Outbox:         outboxService,
		Verifier:       verifier,
		PremiumGuard:   premiumGuard,
		FundingGuard:   fundingGuard,
		Config:         cfg.Payments,
		PlatformUserID: platformUserID,
		Logger:         logg,
		Metrics:        walletMetrics,
	})
	mustBuild(logg, "payments service", err)

	scanner, err := reconciliation.NewScanner(reconciliation.ScannerParams{
		Repository: reconciliation.NewRepository(conn),
		Config:     cfg.Reconciliation,
		Logger:     logg,
		Metrics:    walletMetrics,
	})
	mustBuild(logg, "reconciliation scanner", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	router := routes.NewRouter(cfg, logg, routes.Deps{
		DB:             dbClient,
		Redis:          redisClient,
		Idempotency:    redisClient,
		RateLimiter:    redisClient,
		Wallets:        walletService,
		Ledger:         ledgerService,
		Escrow:         escrowService,
		Payments:       paymentsService,
		Ads:            adsService,
		Reconciliation: scanner,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func mustBuild(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}

func parsePlatformUserID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

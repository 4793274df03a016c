package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/walletcore/api/controllers"
	"github.com/angelmondragon/walletcore/api/middleware"
	"github.com/angelmondragon/walletcore/internal/ads"
	"github.com/angelmondragon/walletcore/internal/escrow"
	"github.com/angelmondragon/walletcore/internal/ledger"
	"github.com/angelmondragon/walletcore/internal/payments"
	"github.com/angelmondragon/walletcore/internal/wallets"
	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/enums"
	"github.com/angelmondragon/walletcore/pkg/logger"
	pkgredis "github.com/angelmondragon/walletcore/pkg/redis"
)

// Deps carries everything the HTTP surface needs. Nil services answer with
// an internal error; nil Idempotency or RateLimiter disables that layer.
type Deps struct {
	DB             controllers.Pinger
	Redis          controllers.Pinger
	Idempotency    pkgredis.IdempotencyStore
	RateLimiter    middleware.RateLimiter
	Wallets        wallets.Service
	Ledger         ledger.Service
	Escrow         escrow.Service
	Payments       payments.Service
	Ads            ads.Service
	Reconciliation controllers.ReconciliationScanner
	Metrics        http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessDeps(deps), logg))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RateLimit(deps.RateLimiter, cfg.RateLimit, logg),
			middleware.Idempotency(deps.Idempotency, logg),
		)

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletGet(deps.Wallets, logg))
			r.Get("/ledger", controllers.WalletLedger(deps.Ledger, logg))
			r.Post("/fund", controllers.WalletFund(deps.Payments, logg))
		})

		r.Route("/marketplace/listings", func(r chi.Router) {
			r.Post("/", controllers.ListingCreate(deps.Escrow, logg))
			r.Get("/{listingId}", controllers.ListingGet(deps.Escrow, logg))
			r.Post("/{listingId}/buy", controllers.ListingBuy(deps.Escrow, logg))
			r.Post("/{listingId}/ship", controllers.ListingShip(deps.Escrow, logg))
			r.Post("/{listingId}/release", controllers.ListingRelease(deps.Escrow, logg))
		})

		r.Post("/tips", controllers.TipSend(deps.Payments, logg))
		r.Get("/ads/campaigns", controllers.AdCampaignList(deps.Ads, logg))
		r.Post("/ads/campaigns", controllers.AdCampaignCreate(deps.Payments, logg))
		r.Post("/premium", controllers.PremiumCharge(deps.Payments, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireRole(enums.UserRoleAdmin, logg),
			middleware.RateLimit(deps.RateLimiter, cfg.RateLimit, logg),
			middleware.Idempotency(deps.Idempotency, logg),
		)

		r.Post("/marketplace/listings/{listingId}/refund", controllers.ListingRefund(deps.Escrow, logg))
		r.Post("/marketplace/listings/{listingId}/release", controllers.ListingRelease(deps.Escrow, logg))
		r.Get("/reconciliation", controllers.AdminReconciliationScan(deps.Reconciliation, logg))
	})

	return r
}

func readinessDeps(deps Deps) map[string]controllers.Pinger {
	out := map[string]controllers.Pinger{}
	if deps.DB != nil {
		out["db"] = deps.DB
	}
	if deps.Redis != nil {
		out["redis"] = deps.Redis
	}
	return out
}

package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/internal/escrow"
	"github.com/angelmondragon/walletcore/internal/reconciliation"
	"github.com/angelmondragon/walletcore/internal/wallets"
	pkgAuth "github.com/angelmondragon/walletcore/pkg/auth"
	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubWalletService struct{}

func (stubWalletService) Get(ctx context.Context, userID uuid.UUID) (*wallets.View, error) {
	return &wallets.View{UserID: userID}, nil
}

type stubEscrowService struct {
	refunds int
}

func (s *stubEscrowService) CreateListing(ctx context.Context, input escrow.CreateListingInput) (*models.Listing, error) {
	return &models.Listing{ID: uuid.New(), SellerID: input.SellerID, Title: input.Title, Price: input.Price}, nil
}

func (s *stubEscrowService) Buy(ctx context.Context, input escrow.BuyInput) (*escrow.Result, error) {
	return &escrow.Result{Outcome: escrow.OutcomeProcessed}, nil
}

func (s *stubEscrowService) MarkShipped(ctx context.Context, input escrow.ShipInput) (*escrow.Result, error) {
	return &escrow.Result{Outcome: escrow.OutcomeProcessed}, nil
}

func (s *stubEscrowService) Release(ctx context.Context, input escrow.ReleaseInput) (*escrow.Result, error) {
	return &escrow.Result{Outcome: escrow.OutcomeProcessed}, nil
}

func (s *stubEscrowService) Refund(ctx context.Context, input escrow.RefundInput) (*escrow.Result, error) {
	s.refunds++
	return &escrow.Result{Outcome: escrow.OutcomeProcessed}, nil
}

func (s *stubEscrowService) Get(ctx context.Context, listingID uuid.UUID) (*escrow.Result, error) {
	return &escrow.Result{Outcome: escrow.OutcomeAlreadyProcessed}, nil
}

type stubScanner struct{}

func (stubScanner) Scan(ctx context.Context, params reconciliation.ScanParams) (*reconciliation.Report, error) {
	return &reconciliation.Report{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config, escrowSvc escrow.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, Deps{
		DB:             stubPinger{},
		Redis:          stubPinger{},
		Wallets:        stubWalletService{},
		Escrow:         escrowSvc,
		Reconciliation: stubScanner{},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(testConfig(), &stubEscrowService{})
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), &stubEscrowService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubEscrowService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestBuyRoute(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubEscrowService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/marketplace/listings/"+uuid.NewString()+"/buy", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	escrowSvc := &stubEscrowService{}
	router := newTestRouter(cfg, escrowSvc)
	path := "/api/admin/v1/marketplace/listings/" + uuid.NewString() + "/refund"

	nonAdmin := httptest.NewRequest(http.MethodPost, path, nil)
	nonAdmin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, nonAdmin)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}
	if escrowSvc.refunds != 0 {
		t.Fatalf("refund must not run for non-admin")
	}

	admin := httptest.NewRequest(http.MethodPost, path, nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d: %s", resp.Code, resp.Body.String())
	}
	if escrowSvc.refunds != 1 {
		t.Fatalf("expected one refund got %d", escrowSvc.refunds)
	}
}

func TestAdminReconciliationRoute(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubEscrowService{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/reconciliation?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/angelmondragon/walletcore/internal/ads"
	"github.com/angelmondragon/walletcore/internal/payments"
	"github.com/angelmondragon/walletcore/internal/wallets"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
)

type testPaymentsService struct {
	adFn      func(ctx context.Context, input payments.AdBudgetInput) (*payments.AdBudgetResult, error)
	tipFn     func(ctx context.Context, input payments.TipInput) (*payments.TipResult, error)
	premiumFn func(ctx context.Context, input payments.PremiumInput) (*payments.PremiumResult, error)
	fundFn    func(ctx context.Context, input payments.FundingInput) (*payments.FundingResult, error)
}

func (s *testPaymentsService) LockAdBudget(ctx context.Context, input payments.AdBudgetInput) (*payments.AdBudgetResult, error) {
	if s.adFn != nil {
		return s.adFn(ctx, input)
	}
	return nil, nil
}

func (s *testPaymentsService) SendTip(ctx context.Context, input payments.TipInput) (*payments.TipResult, error) {
	if s.tipFn != nil {
		return s.tipFn(ctx, input)
	}
	return nil, nil
}

func (s *testPaymentsService) ChargePremium(ctx context.Context, input payments.PremiumInput) (*payments.PremiumResult, error) {
	if s.premiumFn != nil {
		return s.premiumFn(ctx, input)
	}
	return nil, nil
}

func (s *testPaymentsService) FundWallet(ctx context.Context, input payments.FundingInput) (*payments.FundingResult, error) {
	if s.fundFn != nil {
		return s.fundFn(ctx, input)
	}
	return nil, nil
}

type testAdsService struct {
	listFn func(ctx context.Context, advertiserID uuid.UUID, limit int) ([]models.AdCampaign, error)
}

func (s *testAdsService) CreateCampaign(ctx context.Context, input ads.CampaignInput) (*models.AdCampaign, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testAdsService) Get(ctx context.Context, id uuid.UUID) (*models.AdCampaign, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testAdsService) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit int) ([]models.AdCampaign, error) {
	if s.listFn != nil {
		return s.listFn(ctx, advertiserID, limit)
	}
	return nil, nil
}

func TestTipSend(t *testing.T) {
	senderID := uuid.New()
	recipientID := uuid.New()
	svc := &testPaymentsService{
		tipFn: func(ctx context.Context, input payments.TipInput) (*payments.TipResult, error) {
			if input.SenderID != senderID || input.RecipientID != recipientID || input.Amount != 2500 {
				t.Fatalf("unexpected input %+v", input)
			}
			return &payments.TipResult{Reference: "tip:1", Amount: 2500, NetAmount: 2250, PlatformCut: 250, Outcome: payments.OutcomeProcessed}, nil
		},
	}

	body := `{"recipient_id":"` + recipientID.String() + `","amount":2500}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/tips", strings.NewReader(body)), senderID, enums.UserRoleUser)
	resp := httptest.NewRecorder()
	TipSend(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	data, _ := decodeEnvelope(t, resp)["data"].(map[string]any)
	if data["net_amount"] != float64(2250) {
		t.Fatalf("unexpected net amount %v", data["net_amount"])
	}
}

func TestTipSendRejectsMissingRecipient(t *testing.T) {
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/tips", strings.NewReader(`{"amount":2500}`)), uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	TipSend(&testPaymentsService{}, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdCampaignCreate(t *testing.T) {
	advertiserID := uuid.New()
	svc := &testPaymentsService{
		adFn: func(ctx context.Context, input payments.AdBudgetInput) (*payments.AdBudgetResult, error) {
			if input.AdvertiserID != advertiserID || input.Budget != 100000 {
				t.Fatalf("unexpected input %+v", input)
			}
			return &payments.AdBudgetResult{
				Campaign: &models.AdCampaign{
					ID:           uuid.New(),
					AdvertiserID: advertiserID,
					Title:        input.Title,
					Placements:   pq.StringArray{"feed"},
					Budget:       input.Budget,
					Status:       enums.AdCampaignActive,
				},
				Reference: "ad:1",
				Balances:  wallets.Balances{Available: 0, Held: 100000, Total: 100000},
			}, nil
		},
	}

	body := `{"title":"Launch","budget":100000,"placements":["feed"]}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/ads/campaigns", strings.NewReader(body)), advertiserID, enums.UserRoleUser)
	resp := httptest.NewRecorder()
	AdCampaignCreate(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	data, _ := decodeEnvelope(t, resp)["data"].(map[string]any)
	campaign, _ := data["campaign"].(map[string]any)
	if campaign["title"] != "Launch" {
		t.Fatalf("unexpected campaign %v", campaign)
	}
}

func TestAdCampaignCreateCompensationFailure(t *testing.T) {
	svc := &testPaymentsService{
		adFn: func(ctx context.Context, input payments.AdBudgetInput) (*payments.AdBudgetResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeCompensationFailed, "refund failed")
		},
	}
	body := `{"title":"Launch","budget":100000}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/ads/campaigns", strings.NewReader(body)), uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	AdCampaignCreate(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeCompensationFailed) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestAdCampaignList(t *testing.T) {
	advertiserID := uuid.New()
	svc := &testAdsService{
		listFn: func(ctx context.Context, id uuid.UUID, limit int) ([]models.AdCampaign, error) {
			if id != advertiserID || limit != 5 {
				t.Fatalf("unexpected args %s %d", id, limit)
			}
			return []models.AdCampaign{{ID: uuid.New(), AdvertiserID: id, Title: "A"}}, nil
		},
	}
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/ads/campaigns?limit=5", nil), advertiserID, enums.UserRoleUser)
	resp := httptest.NewRecorder()
	AdCampaignList(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	data, _ := decodeEnvelope(t, resp)["data"].(map[string]any)
	items, _ := data["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one campaign, got %v", data)
	}
}

func TestPremiumCharge(t *testing.T) {
	userID := uuid.New()
	svc := &testPaymentsService{
		premiumFn: func(ctx context.Context, input payments.PremiumInput) (*payments.PremiumResult, error) {
			if input.Plan != enums.PremiumPlanYearly || input.Method != enums.ChargeMethodWallet {
				t.Fatalf("unexpected input %+v", input)
			}
			return &payments.PremiumResult{Plan: input.Plan, Method: input.Method, Amount: 1000000, Outcome: payments.OutcomeProcessed}, nil
		},
	}
	body := `{"plan":"yearly","method":"wallet"}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/premium", strings.NewReader(body)), userID, enums.UserRoleUser)
	resp := httptest.NewRecorder()
	PremiumCharge(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPremiumChargeRejectsUnknownPlan(t *testing.T) {
	body := `{"plan":"weekly","method":"wallet"}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/premium", strings.NewReader(body)), uuid.New(), enums.UserRoleUser)
	resp := httptest.NewRecorder()
	PremiumCharge(&testPaymentsService{}, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

package payments

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/internal/ads"
	"github.com/angelmondragon/walletcore/internal/ledger"
	"github.com/angelmondragon/walletcore/internal/testdb"
	"github.com/angelmondragon/walletcore/internal/users"
	"github.com/angelmondragon/walletcore/internal/wallets"
	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/db"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/outbox"
	"github.com/angelmondragon/walletcore/pkg/outbox/idempotency"
)

var testPaymentsConfig = config.PaymentsConfig{
	TipPlatformCutBps:  500,
	PremiumMonthlyKobo: 200000,
	PremiumYearlyKobo:  2000000,
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	m.keys[key] = "1"
	return nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "wc:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type fakeVerifier struct {
	calls  int
	verify func(ref string) (*Verification, error)
}

func (f *fakeVerifier) Verify(ctx context.Context, ref string) (*Verification, error) {
	f.calls++
	return f.verify(ref)
}

func completed(amount int64) func(string) (*Verification, error) {
	return func(ref string) (*Verification, error) {
		return &Verification{Success: true, AmountMinorUnits: amount, Currency: "NGN", GatewayReference: ref}, nil
	}
}

type fakeCampaigns struct {
	create func(ctx context.Context, in ads.CampaignInput) (*models.AdCampaign, error)
	calls  int
}

func (f *fakeCampaigns) CreateCampaign(ctx context.Context, in ads.CampaignInput) (*models.AdCampaign, error) {
	f.calls++
	return f.create(ctx, in)
}

// flakyPoster fails postings of the listed kinds and delegates the rest.
type flakyPoster struct {
	next  poster
	fails map[enums.LedgerEntryKind]bool
}

func (f *flakyPoster) Post(ctx context.Context, in wallets.PostingInput) (*wallets.PostingResult, error) {
	if f.fails[in.Kind] {
		return nil, errors.New("wallet store unavailable")
	}
	return f.next.Post(ctx, in)
}

func (f *flakyPoster) Settle(ctx context.Context, s wallets.Settlement) (*wallets.SettlementResult, error) {
	for _, p := range s.Postings {
		if f.fails[p.Kind] {
			return nil, pkgerrors.New(pkgerrors.CodeBusy, "wallet busy")
		}
	}
	return f.next.Settle(ctx, s)
}

// ackLosingPoster commits settlements of one operation but reports failure,
// as when the connection drops after COMMIT.
type ackLosingPoster struct {
	next      poster
	operation string
}

func (a *ackLosingPoster) Post(ctx context.Context, in wallets.PostingInput) (*wallets.PostingResult, error) {
	return a.next.Post(ctx, in)
}

func (a *ackLosingPoster) Settle(ctx context.Context, s wallets.Settlement) (*wallets.SettlementResult, error) {
	res, err := a.next.Settle(ctx, s)
	if err == nil && s.Operation == a.operation {
		return nil, pkgerrors.New(pkgerrors.CodeBusy, "connection reset")
	}
	return res, err
}

type countingMetrics struct {
	compensation map[string]int
}

func (c *countingMetrics) IncCompensationFailure(operation string) {
	if c.compensation == nil {
		c.compensation = map[string]int{}
	}
	c.compensation[operation]++
}

type harness struct {
	conn      *gorm.DB
	svc       Service
	poster    *wallets.Poster
	mutator   *wallets.Mutator
	users     *users.Service
	campaigns *fakeCampaigns
	verifier  *fakeVerifier
	store     *memoryStore
	flaky     *flakyPoster
	metrics   *countingMetrics
	logs      *bytes.Buffer
	platform  uuid.UUID
}

type harnessOption func(*harness, *ServiceParams)

func withFailingKinds(kinds ...enums.LedgerEntryKind) harnessOption {
	return func(h *harness, p *ServiceParams) {
		fails := map[enums.LedgerEntryKind]bool{}
		for _, k := range kinds {
			fails[k] = true
		}
		h.flaky = &flakyPoster{next: h.poster, fails: fails}
		p.Poster = h.flaky
	}
}

func withLostAck(operation string) harnessOption {
	return func(h *harness, p *ServiceParams) {
		p.Poster = &ackLosingPoster{next: h.poster, operation: operation}
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	conn := testdb.Open(t)
	client := db.NewFromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), client, emitter)
	require.NoError(t, err)
	mutator, err := wallets.NewMutator(wallets.MutatorParams{Repository: wallets.NewRepository(conn), DB: client})
	require.NoError(t, err)
	poster, err := wallets.NewPoster(wallets.PosterParams{DB: client, Mutator: mutator, Ledger: ledgerSvc})
	require.NoError(t, err)
	userSvc, err := users.NewService(users.NewRepository(conn))
	require.NoError(t, err)
	walletSvc, err := wallets.NewService(wallets.NewRepository(conn))
	require.NoError(t, err)

	store := &memoryStore{}
	premiumGuard, err := idempotency.NewMarker(store, "premium_gateway", time.Hour)
	require.NoError(t, err)
	fundingGuard, err := idempotency.NewMarker(store, "wallet_funding", time.Hour)
	require.NoError(t, err)

	h := &harness{
		conn:      conn,
		poster:    poster,
		mutator:   mutator,
		users:     userSvc,
		campaigns: &fakeCampaigns{},
		verifier:  &fakeVerifier{verify: completed(0)},
		store:     store,
		metrics:   &countingMetrics{},
		logs:      &bytes.Buffer{},
		platform:  uuid.New(),
	}
	adsSvc, err := ads.NewService(ads.NewRepository(conn), client, emitter)
	require.NoError(t, err)
	h.campaigns.create = adsSvc.CreateCampaign

	params := ServiceParams{
		Poster:         poster,
		Ledger:         ledgerSvc,
		Wallets:        walletSvc,
		Claims:         NewClaimRepository(conn),
		Campaigns:      h.campaigns,
		Premium:        userSvc,
		DB:             client,
		Outbox:         emitter,
		Verifier:       h.verifier,
		PremiumGuard:   premiumGuard,
		FundingGuard:   fundingGuard,
		Config:         testPaymentsConfig,
		PlatformUserID: h.platform,
		Logger:         logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("info"), Output: h.logs}),
		Metrics:        h.metrics,
	}
	for _, opt := range opts {
		opt(h, &params)
	}
	h.svc, err = NewService(params)
	require.NoError(t, err)
	return h
}

func (h *harness) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := h.mutator.ApplyDelta(context.Background(), wallets.DeltaInput{UserID: userID, AvailableDelta: amount})
	require.NoError(t, err)
}

func (h *harness) wallet(t *testing.T, userID uuid.UUID) models.Wallet {
	t.Helper()
	var w models.Wallet
	err := h.conn.Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Wallet{UserID: userID}
	}
	require.NoError(t, err)
	return w
}

func (h *harness) entryKinds(t *testing.T, userID uuid.UUID) []enums.LedgerEntryKind {
	t.Helper()
	var kinds []enums.LedgerEntryKind
	require.NoError(t, h.conn.Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("entry_kind", &kinds).Error)
	return kinds
}

func (h *harness) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestLockAdBudget_HoldsBudgetAndCreatesCampaign(t *testing.T) {
	h := newHarness(t)
	advertiser := uuid.New()
	h.fund(t, advertiser, 100000)

	res, err := h.svc.LockAdBudget(context.Background(), AdBudgetInput{AdvertiserID: advertiser, Title: "Launch", Budget: 50000, Placements: []string{"feed"}})
	require.NoError(t, err)
	require.NotNil(t, res.Campaign)
	assert.Equal(t, res.Reference, res.Campaign.Reference)
	assert.EqualValues(t, 50000, res.Balances.Available)
	assert.EqualValues(t, 50000, res.Balances.Held)

	w := h.wallet(t, advertiser)
	assert.EqualValues(t, 50000, w.AvailableBalance)
	assert.EqualValues(t, 50000, w.HeldBalance)
	assert.EqualValues(t, 1, h.events(t, enums.EventAdCampaignFunded))
}

func TestLockAdBudget_CompensatesWhenCampaignFails(t *testing.T) {
	h := newHarness(t)
	advertiser := uuid.New()
	h.fund(t, advertiser, 100000)
	h.campaigns.create = func(ctx context.Context, in ads.CampaignInput) (*models.AdCampaign, error) {
		return nil, errors.New("ads store down")
	}

	_, err := h.svc.LockAdBudget(context.Background(), AdBudgetInput{AdvertiserID: advertiser, Title: "Launch", Budget: 50000})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	w := h.wallet(t, advertiser)
	assert.EqualValues(t, 100000, w.AvailableBalance)
	assert.EqualValues(t, 0, w.HeldBalance)
	assert.ElementsMatch(t, []enums.LedgerEntryKind{enums.LedgerEntryAdBudgetLocked, enums.LedgerEntryAdBudgetRefunded}, h.entryKinds(t, advertiser))
	assert.EqualValues(t, 1, h.events(t, enums.EventAdCampaignFundingFailed))
	assert.Empty(t, h.metrics.compensation)
}

func TestLockAdBudget_CompensationFailure(t *testing.T) {
	h := newHarness(t, withFailingKinds(enums.LedgerEntryAdBudgetRefunded))
	advertiser := uuid.New()
	h.fund(t, advertiser, 100000)
	h.campaigns.create = func(ctx context.Context, in ads.CampaignInput) (*models.AdCampaign, error) {
		return nil, errors.New("ads store down")
	}

	_, err := h.svc.LockAdBudget(context.Background(), AdBudgetInput{AdvertiserID: advertiser, Title: "Launch", Budget: 50000})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCompensationFailed))
	assert.Equal(t, 1, h.metrics.compensation["ad_budget"])
	assert.Contains(t, h.logs.String(), "compensation failed")
	assert.Contains(t, h.logs.String(), advertiser.String())

	w := h.wallet(t, advertiser)
	assert.EqualValues(t, 50000, w.HeldBalance, "hold stays for reconciliation to flag")
}

func TestLockAdBudget_InsufficientFundsSkipsCampaign(t *testing.T) {
	h := newHarness(t)
	advertiser := uuid.New()
	h.fund(t, advertiser, 100)

	_, err := h.svc.LockAdBudget(context.Background(), AdBudgetInput{AdvertiserID: advertiser, Title: "Launch", Budget: 50000})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
	assert.Zero(t, h.campaigns.calls)
}

func TestSendTip_SplitsPlatformCut(t *testing.T) {
	h := newHarness(t)
	sender, recipient := uuid.New(), uuid.New()
	h.fund(t, sender, 10000)

	res, err := h.svc.SendTip(context.Background(), TipInput{SenderID: sender, RecipientID: recipient, Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.EqualValues(t, 50, res.PlatformCut)
	assert.EqualValues(t, 950, res.NetAmount)
	assert.EqualValues(t, 9000, res.Balances.Available)

	assert.EqualValues(t, 9000, h.wallet(t, sender).AvailableBalance)
	assert.EqualValues(t, 950, h.wallet(t, recipient).AvailableBalance)
	assert.EqualValues(t, 50, h.wallet(t, h.platform).AvailableBalance)
}

func TestSendTip_ReplayByReference(t *testing.T) {
	h := newHarness(t)
	sender, recipient := uuid.New(), uuid.New()
	h.fund(t, sender, 10000)
	input := TipInput{SenderID: sender, RecipientID: recipient, Amount: 1000, Reference: "tip-abc"}

	_, err := h.svc.SendTip(context.Background(), input)
	require.NoError(t, err)
	again, err := h.svc.SendTip(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, again.Outcome)
	assert.EqualValues(t, 9000, h.wallet(t, sender).AvailableBalance)
	assert.EqualValues(t, 950, h.wallet(t, recipient).AvailableBalance)
}

func TestSendTip_Validation(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	_, err := h.svc.SendTip(context.Background(), TipInput{SenderID: user, RecipientID: user, Amount: 10})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = h.svc.SendTip(context.Background(), TipInput{SenderID: user, RecipientID: uuid.New(), Amount: 0})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.SendTip(context.Background(), TipInput{SenderID: user, RecipientID: uuid.New(), Amount: 10})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
}

func TestSendTip_ReversesDebitWhenCreditFails(t *testing.T) {
	h := newHarness(t, withFailingKinds(enums.LedgerEntryTipReceived))
	sender, recipient := uuid.New(), uuid.New()
	h.fund(t, sender, 10000)

	_, err := h.svc.SendTip(context.Background(), TipInput{SenderID: sender, RecipientID: recipient, Amount: 1000, Reference: "tip-rev"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusy))

	assert.EqualValues(t, 10000, h.wallet(t, sender).AvailableBalance)
	assert.EqualValues(t, 0, h.wallet(t, recipient).AvailableBalance)

	var reversal models.LedgerEntry
	require.NoError(t, h.conn.Where("user_id = ? AND reference = ?", sender, "tip-rev:reversal").First(&reversal).Error)
	assert.Equal(t, enums.LedgerEntryAdjustment, reversal.EntryKind)
	assert.EqualValues(t, 1000, reversal.WalletEffect)
}

func TestSendTip_ReversalFailureIsReported(t *testing.T) {
	h := newHarness(t, withFailingKinds(enums.LedgerEntryTipReceived, enums.LedgerEntryAdjustment))
	sender, recipient := uuid.New(), uuid.New()
	h.fund(t, sender, 10000)

	_, err := h.svc.SendTip(context.Background(), TipInput{SenderID: sender, RecipientID: recipient, Amount: 1000})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCompensationFailed))
	assert.Equal(t, 1, h.metrics.compensation["tip"])
	assert.Contains(t, h.logs.String(), "compensation failed")
	assert.EqualValues(t, 9000, h.wallet(t, sender).AvailableBalance)
}

func TestChargePremium_Wallet(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, 300000)

	res, err := h.svc.ChargePremium(context.Background(), PremiumInput{UserID: user, Plan: enums.PremiumPlanMonthly, Method: enums.ChargeMethodWallet})
	require.NoError(t, err)
	assert.EqualValues(t, 200000, res.Amount)
	require.NotNil(t, res.Balances)
	assert.EqualValues(t, 100000, res.Balances.Available)
	require.NotNil(t, res.PremiumExpiresAt)

	premium, err := h.users.IsPremium(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, premium)
	assert.EqualValues(t, 200000, h.wallet(t, h.platform).AvailableBalance)
	assert.EqualValues(t, 1, h.events(t, enums.EventPremiumActivated))
}

func TestChargePremium_WalletInsufficientLeavesUserBasic(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, 1000)

	_, err := h.svc.ChargePremium(context.Background(), PremiumInput{UserID: user, Plan: enums.PremiumPlanYearly, Method: enums.ChargeMethodWallet})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))

	premium, err := h.users.IsPremium(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, premium)
	assert.EqualValues(t, 1000, h.wallet(t, user).AvailableBalance)
	assert.Zero(t, h.events(t, enums.EventPremiumActivated))
}

func TestChargePremium_GatewayIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.verifier.verify = completed(200000)
	user := uuid.New()
	input := PremiumInput{UserID: user, Plan: enums.PremiumPlanMonthly, Method: enums.ChargeMethodGateway, GatewayReference: "sq_pay_1"}

	first, err := h.svc.ChargePremium(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, first.Outcome)
	assert.Nil(t, first.Balances)

	second, err := h.svc.ChargePremium(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, second.Outcome)
	assert.Equal(t, 1, h.verifier.calls)

	premium, err := h.users.IsPremium(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, premium)
	assert.Empty(t, h.entryKinds(t, user), "gateway upgrades do not touch the wallet")
}

func TestChargePremium_GatewayRejectsShortPayment(t *testing.T) {
	h := newHarness(t)
	h.verifier.verify = completed(1000)
	input := PremiumInput{UserID: uuid.New(), Plan: enums.PremiumPlanMonthly, Method: enums.ChargeMethodGateway, GatewayReference: "sq_pay_short"}

	_, err := h.svc.ChargePremium(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	h.verifier.verify = completed(200000)
	res, err := h.svc.ChargePremium(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome, "a failed attempt releases the reference")
	assert.Equal(t, 2, h.verifier.calls)
}

func TestChargePremium_Validation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ChargePremium(context.Background(), PremiumInput{UserID: uuid.New(), Plan: "weekly", Method: enums.ChargeMethodWallet})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = h.svc.ChargePremium(context.Background(), PremiumInput{UserID: uuid.New(), Plan: enums.PremiumPlanMonthly, Method: "cash"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = h.svc.ChargePremium(context.Background(), PremiumInput{UserID: uuid.New(), Plan: enums.PremiumPlanMonthly, Method: enums.ChargeMethodGateway})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFundWallet_CreditsOnce(t *testing.T) {
	h := newHarness(t)
	h.verifier.verify = completed(5000)
	user := uuid.New()
	input := FundingInput{UserID: user, GatewayReference: "sq_fund_1"}

	first, err := h.svc.FundWallet(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, first.Outcome)
	assert.EqualValues(t, 5000, first.Amount)
	require.NotNil(t, first.Balances)
	assert.EqualValues(t, 5000, first.Balances.Available)

	second, err := h.svc.FundWallet(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, second.Outcome)
	assert.EqualValues(t, 5000, h.wallet(t, user).AvailableBalance)
}

func TestFundWallet_RejectsIncompletePayment(t *testing.T) {
	h := newHarness(t)
	h.verifier.verify = func(ref string) (*Verification, error) {
		return &Verification{Success: false, AmountMinorUnits: 5000, GatewayReference: ref}, nil
	}
	_, err := h.svc.FundWallet(context.Background(), FundingInput{UserID: uuid.New(), GatewayReference: "sq_pending"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	h.verifier.verify = func(ref string) (*Verification, error) {
		return &Verification{Success: true, AmountMinorUnits: 5000, Currency: "USD", GatewayReference: ref}, nil
	}
	_, err = h.svc.FundWallet(context.Background(), FundingInput{UserID: uuid.New(), GatewayReference: "sq_usd"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSendTip_RetryAfterReversalIsStateConflict(t *testing.T) {
	h := newHarness(t, withFailingKinds(enums.LedgerEntryTipReceived))
	sender, recipient := uuid.New(), uuid.New()
	h.fund(t, sender, 10000)
	input := TipInput{SenderID: sender, RecipientID: recipient, Amount: 1000, Reference: "tip-r"}

	_, err := h.svc.SendTip(context.Background(), input)
	require.Error(t, err)
	assert.EqualValues(t, 10000, h.wallet(t, sender).AvailableBalance)

	h.flaky.fails = nil
	_, err = h.svc.SendTip(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	assert.EqualValues(t, 10000, h.wallet(t, sender).AvailableBalance)
	assert.EqualValues(t, 0, h.wallet(t, recipient).AvailableBalance)
	assert.EqualValues(t, 0, h.wallet(t, h.platform).AvailableBalance)

	fresh, err := h.svc.SendTip(context.Background(), TipInput{SenderID: sender, RecipientID: recipient, Amount: 1000, Reference: "tip-r2"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, fresh.Outcome)
	assert.EqualValues(t, 9000, h.wallet(t, sender).AvailableBalance)
	assert.EqualValues(t, 950, h.wallet(t, recipient).AvailableBalance)
}

func TestSendTip_CommittedCreditIsNotReversed(t *testing.T) {
	h := newHarness(t, withLostAck("tip_credit"))
	sender, recipient := uuid.New(), uuid.New()
	h.fund(t, sender, 10000)

	res, err := h.svc.SendTip(context.Background(), TipInput{SenderID: sender, RecipientID: recipient, Amount: 1000, Reference: "tip-ack"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, res.Outcome)

	assert.EqualValues(t, 9000, h.wallet(t, sender).AvailableBalance)
	assert.EqualValues(t, 950, h.wallet(t, recipient).AvailableBalance)
	assert.NotContains(t, h.entryKinds(t, sender), enums.LedgerEntryAdjustment)
}

func TestSendTip_ReplayReportsCurrentBalances(t *testing.T) {
	h := newHarness(t)
	sender, recipient := uuid.New(), uuid.New()
	h.fund(t, sender, 10000)
	input := TipInput{SenderID: sender, RecipientID: recipient, Amount: 1000, Reference: "tip-now"}

	first, err := h.svc.SendTip(context.Background(), input)
	require.NoError(t, err)
	assert.EqualValues(t, 9000, first.Balances.Available)

	h.fund(t, sender, 5000)
	again, err := h.svc.SendTip(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, again.Outcome)
	assert.EqualValues(t, 14000, again.Balances.Available)
	assert.EqualValues(t, 14000, again.Balances.Total)
}

func TestFundWallet_ReferenceCannotFundAnotherUser(t *testing.T) {
	h := newHarness(t)
	h.verifier.verify = completed(5000)
	alice, bob := uuid.New(), uuid.New()

	_, err := h.svc.FundWallet(context.Background(), FundingInput{UserID: alice, GatewayReference: "sq-pay-1"})
	require.NoError(t, err)

	// the in-flight marker expires long before anyone stops replaying
	h.store.keys = nil
	_, err = h.svc.FundWallet(context.Background(), FundingInput{UserID: bob, GatewayReference: "sq-pay-1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.EqualValues(t, 0, h.wallet(t, bob).AvailableBalance)

	again, err := h.svc.FundWallet(context.Background(), FundingInput{UserID: alice, GatewayReference: "sq-pay-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, again.Outcome)
	require.NotNil(t, again.Balances)
	assert.EqualValues(t, 5000, again.Balances.Available)
	assert.EqualValues(t, 5000, h.wallet(t, alice).AvailableBalance)
	assert.Equal(t, 1, h.verifier.calls)
}

func TestFundWallet_InFlightReferenceIsConflict(t *testing.T) {
	h := newHarness(t)
	h.verifier.verify = completed(5000)
	h.store.keys = map[string]string{h.store.IdempotencyKey("wallet_funding", "sq-busy"): "1"}

	_, err := h.svc.FundWallet(context.Background(), FundingInput{UserID: uuid.New(), GatewayReference: "sq-busy"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Zero(t, h.verifier.calls)
}

func TestChargePremium_GatewayReferenceIsBoundToFirstClaim(t *testing.T) {
	h := newHarness(t)
	h.verifier.verify = completed(200000)
	alice, bob := uuid.New(), uuid.New()

	_, err := h.svc.ChargePremium(context.Background(), PremiumInput{UserID: alice, Plan: enums.PremiumPlanMonthly, Method: enums.ChargeMethodGateway, GatewayReference: "sq-prem"})
	require.NoError(t, err)

	h.store.keys = nil
	_, err = h.svc.ChargePremium(context.Background(), PremiumInput{UserID: bob, Plan: enums.PremiumPlanMonthly, Method: enums.ChargeMethodGateway, GatewayReference: "sq-prem"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	premium, err := h.users.IsPremium(context.Background(), bob)
	require.NoError(t, err)
	assert.False(t, premium)

	_, err = h.svc.FundWallet(context.Background(), FundingInput{UserID: alice, GatewayReference: "sq-prem"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "a premium payment cannot also fund the wallet")
	assert.EqualValues(t, 0, h.wallet(t, alice).AvailableBalance)
}

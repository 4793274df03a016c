package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/internal/ads"
	"github.com/angelmondragon/walletcore/internal/wallets"
	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/money"
	"github.com/angelmondragon/walletcore/pkg/outbox"
	"github.com/angelmondragon/walletcore/pkg/outbox/payloads"
)

const gatewayCurrency = "NGN"

// Service debits wallets for tips, premium upgrades and ad budgets, and
// credits them for verified gateway payments.
type Service interface {
	LockAdBudget(ctx context.Context, input AdBudgetInput) (*AdBudgetResult, error)
	SendTip(ctx context.Context, input TipInput) (*TipResult, error)
	ChargePremium(ctx context.Context, input PremiumInput) (*PremiumResult, error)
	FundWallet(ctx context.Context, input FundingInput) (*FundingResult, error)
}

type poster interface {
	Post(ctx context.Context, in wallets.PostingInput) (*wallets.PostingResult, error)
	Settle(ctx context.Context, s wallets.Settlement) (*wallets.SettlementResult, error)
}

type ledgerReader interface {
	FindByReference(ctx context.Context, userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (*models.LedgerEntry, error)
	FindByReferenceTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind enums.LedgerEntryKind, reference string, lock bool) (*models.LedgerEntry, error)
}

type walletReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*wallets.View, error)
}

type campaignCreator interface {
	CreateCampaign(ctx context.Context, input ads.CampaignInput) (*models.AdCampaign, error)
}

type premiumActivator interface {
	ActivatePremiumTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, plan enums.PremiumPlan) (*models.UserProfile, error)
}

type referenceGuard interface {
	CheckAndMark(ctx context.Context, reference string) (bool, error)
	Delete(ctx context.Context, reference string) error
}

type claimStore interface {
	ClaimTx(ctx context.Context, tx *gorm.DB, claim *models.GatewayPayment) error
	Find(ctx context.Context, reference string) (*models.GatewayPayment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type compensationMetrics interface {
	IncCompensationFailure(operation string)
}

// ServiceParams wires the debit adapters. Verifier, Claims and the guards
// are only needed for gateway flows; PlatformUserID and Wallets are
// optional.
type ServiceParams struct {
	Poster         poster
	Ledger         ledgerReader
	Wallets        walletReader
	Claims         claimStore
	Campaigns      campaignCreator
	Premium        premiumActivator
	DB             txRunner
	Outbox         outbox.Emitter
	Verifier       Verifier
	PremiumGuard   referenceGuard
	FundingGuard   referenceGuard
	Config         config.PaymentsConfig
	PlatformUserID uuid.UUID
	Logger         *logger.Logger
	Metrics        compensationMetrics
}

type service struct {
	poster       poster
	ledger       ledgerReader
	wallets      walletReader
	claims       claimStore
	campaigns    campaignCreator
	premium      premiumActivator
	db           txRunner
	outbox       outbox.Emitter
	verifier     Verifier
	premiumGuard referenceGuard
	fundingGuard referenceGuard
	cfg          config.PaymentsConfig
	platform     uuid.UUID
	logg         *logger.Logger
	metrics      compensationMetrics
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Poster == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet poster required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger reader required")
	case params.Campaigns == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "campaign creator required")
	case params.Premium == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "premium activator required")
	case params.DB == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if params.Config.TipPlatformCutBps < 0 || params.Config.TipPlatformCutBps > money.MaxBps {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip platform cut out of range")
	}
	return &service{
		poster:       params.Poster,
		ledger:       params.Ledger,
		wallets:      params.Wallets,
		claims:       params.Claims,
		campaigns:    params.Campaigns,
		premium:      params.Premium,
		db:           params.DB,
		outbox:       params.Outbox,
		verifier:     params.Verifier,
		premiumGuard: params.PremiumGuard,
		fundingGuard: params.FundingGuard,
		cfg:          params.Config,
		platform:     params.PlatformUserID,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

// LockAdBudget holds the budget, then creates the campaign. A failed
// creation releases the hold.
func (s *service) LockAdBudget(ctx context.Context, input AdBudgetInput) (*AdBudgetResult, error) {
	if input.AdvertiserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "advertiser id required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.Budget <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "budget must be positive")
	}
	reference := fmt.Sprintf("ad:%s:%s", input.AdvertiserID, uuid.NewString())
	ctx = s.withReference(ctx, reference)

	lock, err := s.poster.Post(ctx, wallets.PostingInput{
		UserID:         input.AdvertiserID,
		Kind:           enums.LedgerEntryAdBudgetLocked,
		AvailableDelta: -input.Budget,
		HeldDelta:      input.Budget,
		Reference:      reference,
		Metadata:       map[string]any{"title": input.Title},
	})
	if err != nil {
		return nil, err
	}

	campaign, createErr := s.campaigns.CreateCampaign(ctx, ads.CampaignInput{
		AdvertiserID: input.AdvertiserID,
		Title:        input.Title,
		Budget:       input.Budget,
		Placements:   input.Placements,
		Reference:    reference,
	})
	if createErr == nil {
		return &AdBudgetResult{Campaign: campaign, Reference: reference, Balances: lock.Balances}, nil
	}

	_, refundErr := s.poster.Post(ctx, wallets.PostingInput{
		UserID:         input.AdvertiserID,
		Kind:           enums.LedgerEntryAdBudgetRefunded,
		AvailableDelta: input.Budget,
		HeldDelta:      -input.Budget,
		Reference:      reference,
		Metadata:       map[string]any{"reason": createErr.Error()},
	})
	s.emitFundingFailed(ctx, input, reference, createErr, refundErr == nil)
	if refundErr != nil {
		s.compensationFailed(ctx, "ad_budget", refundErr, map[string]any{
			"advertiser_id": input.AdvertiserID.String(),
			"reference":     reference,
			"budget":        input.Budget,
		})
		return nil, pkgerrors.Wrap(pkgerrors.CodeCompensationFailed, refundErr, "campaign creation failed and budget was not released").
			WithDetails(map[string]any{"reference": reference})
	}
	if pkgerrors.As(createErr) != nil {
		return nil, createErr
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create campaign")
}

// SendTip debits the sender then credits the recipient and platform. The
// two steps are separate mutations; a failed credit reverses the debit, and
// a reversed tip stays reversed: replaying its reference is a state
// conflict, never a second attempt at the credit.
func (s *service) SendTip(ctx context.Context, input TipInput) (*TipResult, error) {
	switch {
	case input.SenderID == uuid.Nil || input.RecipientID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender and recipient required")
	case input.SenderID == input.RecipientID:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot tip yourself")
	case input.Amount <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		reference = fmt.Sprintf("tip:%s:%s", input.SenderID, uuid.NewString())
	}
	ctx = s.withReference(ctx, reference)

	cut, net, err := money.Split(input.Amount, s.cfg.TipPlatformCutBps)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute platform cut")
	}
	result := &TipResult{Reference: reference, Amount: input.Amount, PlatformCut: cut, NetAmount: net, Outcome: OutcomeProcessed}
	tip := tipPostings{
		sender:    input.SenderID,
		recipient: input.RecipientID,
		reference: reference,
		amount:    input.Amount,
	}
	tip.credits = s.tipCredits(tip, cut, net)

	debit, err := s.poster.Post(ctx, wallets.PostingInput{
		UserID:         tip.sender,
		Kind:           enums.LedgerEntryTipSent,
		AvailableDelta: -input.Amount,
		Reference:      reference,
		CounterpartyID: &tip.recipient,
	})
	if err != nil {
		return nil, err
	}
	result.Balances = debit.Balances

	if debit.AlreadyPosted {
		state, err := s.tipState(ctx, nil, tip)
		if err != nil {
			return nil, err
		}
		switch state {
		case tipCredited:
			return s.replayedTip(ctx, result, tip.sender), nil
		case tipReversed:
			return nil, tipWasReversed(reference)
		}
	}
	if len(tip.credits) == 0 {
		return result, nil
	}

	var seen tipStatus
	credit, creditErr := s.poster.Settle(ctx, wallets.Settlement{
		Operation: "tip_credit",
		Guard:     s.tipGuard(tip, &seen),
		Postings:  tip.credits,
	})
	switch {
	case creditErr == nil && credit.Applied:
		return result, nil
	case creditErr == nil && seen == tipReversed:
		return nil, tipWasReversed(reference)
	case creditErr == nil, errors.Is(creditErr, wallets.ErrAlreadyPosted):
		return s.replayedTip(ctx, result, tip.sender), nil
	}

	reversal, reversalErr := s.poster.Settle(ctx, wallets.Settlement{
		Operation: "tip_reversal",
		Guard:     s.tipGuard(tip, &seen),
		Postings: []wallets.PostingInput{{
			UserID:         tip.sender,
			Kind:           enums.LedgerEntryAdjustment,
			AvailableDelta: input.Amount,
			Reference:      tip.reversalReference(),
			CounterpartyID: &tip.recipient,
			Metadata:       map[string]any{"reason": "tip credit failed"},
		}},
	})
	if errors.Is(reversalErr, wallets.ErrAlreadyPosted) {
		return nil, creditErr
	}
	if reversalErr != nil {
		s.compensationFailed(ctx, "tip", reversalErr, map[string]any{
			"sender_id":    tip.sender.String(),
			"recipient_id": tip.recipient.String(),
			"reference":    reference,
			"amount":       input.Amount,
		})
		return nil, pkgerrors.Wrap(pkgerrors.CodeCompensationFailed, reversalErr, "tip credit failed and sender was not refunded").
			WithDetails(map[string]any{"reference": reference})
	}
	if !reversal.Applied && seen == tipCredited {
		// the credit committed even though its caller saw an error
		return s.replayedTip(ctx, result, tip.sender), nil
	}
	return nil, creditErr
}

// ChargePremium upgrades the user after payment from the wallet or a
// verified gateway charge.
func (s *service) ChargePremium(ctx context.Context, input PremiumInput) (*PremiumResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	plan, err := enums.ParsePremiumPlan(string(input.Plan))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid premium plan")
	}
	price := s.priceFor(plan)
	if price <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "premium plan has no price")
	}

	switch input.Method {
	case enums.ChargeMethodWallet:
		return s.chargePremiumFromWallet(ctx, input.UserID, plan, price)
	case enums.ChargeMethodGateway:
		return s.chargePremiumFromGateway(ctx, input.UserID, plan, price, strings.TrimSpace(input.GatewayReference))
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid charge method")
	}
}

func (s *service) chargePremiumFromWallet(ctx context.Context, userID uuid.UUID, plan enums.PremiumPlan, price int64) (*PremiumResult, error) {
	reference := fmt.Sprintf("premium:%s:%s", userID, uuid.NewString())
	ctx = s.withReference(ctx, reference)

	postings := []wallets.PostingInput{{
		UserID:         userID,
		Kind:           enums.LedgerEntryPremiumCharge,
		AvailableDelta: -price,
		Reference:      reference,
		Metadata:       map[string]any{"plan": string(plan)},
	}}
	if s.platform != uuid.Nil {
		postings = append(postings, wallets.PostingInput{
			UserID:         s.platform,
			Kind:           enums.LedgerEntryPlatformFee,
			AvailableDelta: price,
			Reference:      reference,
			CounterpartyID: &userID,
		})
	}

	var profile *models.UserProfile
	res, err := s.poster.Settle(ctx, wallets.Settlement{
		Operation: "premium_charge",
		Guard: func(ctx context.Context, tx *gorm.DB) (bool, error) {
			activated, err := s.activate(ctx, tx, userID, plan, enums.ChargeMethodWallet, price, reference)
			if err != nil {
				return false, err
			}
			profile = activated
			return true, nil
		},
		Postings: postings,
	})
	if err != nil {
		return nil, err
	}
	balances := res.Postings[0].Balances
	return &PremiumResult{
		Plan:             plan,
		Method:           enums.ChargeMethodWallet,
		Amount:           price,
		PremiumExpiresAt: profile.PremiumExpiresAt,
		Reference:        reference,
		Balances:         &balances,
		Outcome:          OutcomeProcessed,
	}, nil
}

func (s *service) chargePremiumFromGateway(ctx context.Context, userID uuid.UUID, plan enums.PremiumPlan, price int64, gatewayRef string) (*PremiumResult, error) {
	if gatewayRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway reference required")
	}
	if s.verifier == nil || s.premiumGuard == nil || s.claims == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	reference := "gateway:" + gatewayRef
	ctx = s.withReference(ctx, reference)
	result := &PremiumResult{Plan: plan, Method: enums.ChargeMethodGateway, Amount: price, Reference: reference}

	replay, err := s.beginGatewayPayment(ctx, s.premiumGuard, gatewayRef, userID, enums.GatewayPurposePremium)
	if err != nil {
		return nil, err
	}
	if replay {
		result.Outcome = OutcomeAlreadyProcessed
		return result, nil
	}

	if _, err := s.verify(ctx, gatewayRef, price); err != nil {
		s.release(ctx, s.premiumGuard, gatewayRef)
		return nil, err
	}

	var profile *models.UserProfile
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		claim := &models.GatewayPayment{Reference: gatewayRef, UserID: userID, Purpose: enums.GatewayPurposePremium, Amount: price}
		if err := s.claims.ClaimTx(ctx, tx, claim); err != nil {
			return err
		}
		activated, err := s.activate(ctx, tx, userID, plan, enums.ChargeMethodGateway, price, reference)
		if err != nil {
			return err
		}
		profile = activated
		return nil
	})
	if err != nil {
		s.release(ctx, s.premiumGuard, gatewayRef)
		if errors.Is(err, errReferenceClaimed) {
			if _, claimErr := s.priorClaim(ctx, gatewayRef, userID, enums.GatewayPurposePremium); claimErr != nil {
				return nil, claimErr
			}
			result.Outcome = OutcomeAlreadyProcessed
			return result, nil
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate premium")
	}
	result.PremiumExpiresAt = profile.PremiumExpiresAt
	result.Outcome = OutcomeProcessed
	return result, nil
}

// FundWallet credits a verified gateway payment to the user's wallet. The
// gateway reference is claimed in the same transaction as the credit, so it
// funds one wallet once no matter how long ago it was first seen.
func (s *service) FundWallet(ctx context.Context, input FundingInput) (*FundingResult, error) {
	gatewayRef := strings.TrimSpace(input.GatewayReference)
	if input.UserID == uuid.Nil || gatewayRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and gateway reference required")
	}
	if s.verifier == nil || s.fundingGuard == nil || s.claims == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	reference := "gateway:" + gatewayRef
	ctx = s.withReference(ctx, reference)
	replayed := func() *FundingResult {
		return &FundingResult{Reference: reference, Balances: s.currentBalances(ctx, input.UserID), Outcome: OutcomeAlreadyProcessed}
	}

	replay, err := s.beginGatewayPayment(ctx, s.fundingGuard, gatewayRef, input.UserID, enums.GatewayPurposeWalletFunding)
	if err != nil {
		return nil, err
	}
	if replay {
		return replayed(), nil
	}

	verification, err := s.verify(ctx, gatewayRef, 1)
	if err != nil {
		s.release(ctx, s.fundingGuard, gatewayRef)
		return nil, err
	}

	res, err := s.poster.Settle(ctx, wallets.Settlement{
		Operation: "wallet_funding",
		Guard: func(ctx context.Context, tx *gorm.DB) (bool, error) {
			claim := &models.GatewayPayment{
				Reference: gatewayRef,
				UserID:    input.UserID,
				Purpose:   enums.GatewayPurposeWalletFunding,
				Amount:    verification.AmountMinorUnits,
			}
			return true, s.claims.ClaimTx(ctx, tx, claim)
		},
		Postings: []wallets.PostingInput{{
			UserID:         input.UserID,
			Kind:           enums.LedgerEntryWalletFunding,
			AvailableDelta: verification.AmountMinorUnits,
			Reference:      reference,
			Metadata:       map[string]any{"gateway": "square", "gateway_reference": gatewayRef},
		}},
	})
	switch {
	case errors.Is(err, errReferenceClaimed):
		s.release(ctx, s.fundingGuard, gatewayRef)
		if _, claimErr := s.priorClaim(ctx, gatewayRef, input.UserID, enums.GatewayPurposeWalletFunding); claimErr != nil {
			return nil, claimErr
		}
		return replayed(), nil
	case errors.Is(err, wallets.ErrAlreadyPosted):
		return replayed(), nil
	case err != nil:
		s.release(ctx, s.fundingGuard, gatewayRef)
		return nil, err
	}
	return &FundingResult{
		Amount:    verification.AmountMinorUnits,
		Reference: reference,
		Balances:  &res.Postings[0].Balances,
		Outcome:   OutcomeProcessed,
	}, nil
}

// beginGatewayPayment reports true when userID already consumed gatewayRef
// for purpose. A reference consumed by anyone else, or still being
// processed, is a conflict. Otherwise the in-flight marker is taken and the
// caller must release it on failure.
func (s *service) beginGatewayPayment(ctx context.Context, guard referenceGuard, gatewayRef string, userID uuid.UUID, purpose enums.GatewayPurpose) (bool, error) {
	claimed, err := s.priorClaim(ctx, gatewayRef, userID, purpose)
	if err != nil || claimed {
		return claimed, err
	}
	inFlight, err := guard.CheckAndMark(ctx, gatewayRef)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check gateway reference")
	}
	if !inFlight {
		return false, nil
	}
	// the marker may belong to an attempt that committed since the first read
	claimed, err = s.priorClaim(ctx, gatewayRef, userID, purpose)
	if err != nil || claimed {
		return claimed, err
	}
	return false, pkgerrors.New(pkgerrors.CodeConflict, "gateway payment is already being processed").
		WithDetails(map[string]any{"gateway_reference": gatewayRef})
}

// priorClaim reports whether gatewayRef is already claimed by userID for
// purpose, and fails when it belongs to someone or something else.
func (s *service) priorClaim(ctx context.Context, gatewayRef string, userID uuid.UUID, purpose enums.GatewayPurpose) (bool, error) {
	claim, err := s.claims.Find(ctx, gatewayRef)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway payment claim")
	}
	if claim == nil {
		return false, nil
	}
	if claim.UserID != userID || claim.Purpose != purpose {
		return false, pkgerrors.New(pkgerrors.CodeConflict, "gateway payment already claimed").
			WithDetails(map[string]any{"gateway_reference": gatewayRef})
	}
	return true, nil
}

func (s *service) verify(ctx context.Context, gatewayRef string, minAmount int64) (*Verification, error) {
	verification, err := s.verifier.Verify(ctx, gatewayRef)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify gateway payment")
	}
	if verification == nil || !verification.Success {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment not completed")
	}
	if verification.Currency != "" && verification.Currency != gatewayCurrency {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment currency not supported").
			WithDetails(map[string]any{"currency": verification.Currency})
	}
	if verification.AmountMinorUnits < minAmount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment amount too low").
			WithDetails(map[string]any{"amount": verification.AmountMinorUnits, "required": minAmount})
	}
	return verification, nil
}

func (s *service) activate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, plan enums.PremiumPlan, method enums.ChargeMethod, amount int64, reference string) (*models.UserProfile, error) {
	profile, err := s.premium.ActivatePremiumTx(ctx, tx, userID, plan)
	if err != nil {
		return nil, err
	}
	event := payloads.PremiumActivatedEvent{
		UserID:    userID,
		Plan:      plan,
		Method:    method,
		Amount:    amount,
		Reference: reference,
	}
	if profile.PremiumExpiresAt != nil {
		event.PremiumExpiresAt = *profile.PremiumExpiresAt
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPremiumActivated,
		AggregateType: enums.AggregateUserProfile,
		AggregateID:   userID,
		Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleUser)},
		Data:          event,
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *service) priceFor(plan enums.PremiumPlan) int64 {
	if plan == enums.PremiumPlanYearly {
		return s.cfg.PremiumYearlyKobo
	}
	return s.cfg.PremiumMonthlyKobo
}

func (s *service) emitFundingFailed(ctx context.Context, input AdBudgetInput, reference string, cause error, compensated bool) {
	ctx = context.WithoutCancel(ctx)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdCampaignFundingFailed,
			AggregateType: enums.AggregateAdCampaign,
			AggregateID:   input.AdvertiserID,
			Actor:         &outbox.ActorRef{UserID: input.AdvertiserID, Role: string(enums.UserRoleUser)},
			Data: payloads.AdCampaignFundingFailedEvent{
				AdvertiserID: input.AdvertiserID,
				Budget:       input.Budget,
				Reference:    reference,
				Reason:       cause.Error(),
				Compensated:  compensated,
			},
		})
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit ad funding failure", err)
	}
}

func (s *service) compensationFailed(ctx context.Context, operation string, err error, fields map[string]any) {
	if s.metrics != nil {
		s.metrics.IncCompensationFailure(operation)
	}
	if s.logg == nil {
		return
	}
	fields["operation"] = operation
	s.logg.Error(s.logg.WithFields(ctx, fields), "compensation failed", err)
}

func (s *service) release(ctx context.Context, guard referenceGuard, gatewayRef string) {
	if err := guard.Delete(context.WithoutCancel(ctx), gatewayRef); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "release gateway reference failed")
	}
}

func (s *service) withReference(ctx context.Context, reference string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithReference(ctx, reference)
}

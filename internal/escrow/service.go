package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/internal/wallets"
	"github.com/angelmondragon/walletcore/pkg/db"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/money"
	"github.com/angelmondragon/walletcore/pkg/outbox"
	"github.com/angelmondragon/walletcore/pkg/outbox/payloads"
)

// Service coordinates listing and escrow transaction state with the wallet
// postings each transition pays for.
type Service interface {
	CreateListing(ctx context.Context, input CreateListingInput) (*models.Listing, error)
	Buy(ctx context.Context, input BuyInput) (*Result, error)
	MarkShipped(ctx context.Context, input ShipInput) (*Result, error)
	Release(ctx context.Context, input ReleaseInput) (*Result, error)
	Refund(ctx context.Context, input RefundInput) (*Result, error)
	Get(ctx context.Context, listingID uuid.UUID) (*Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settler interface {
	Settle(ctx context.Context, s wallets.Settlement) (*wallets.SettlementResult, error)
}

// ServiceParams wires escrow dependencies. PlatformUserID is optional; when
// set, commission is credited to that wallet on release.
type ServiceParams struct {
	Repository     Repository
	DB             txRunner
	Poster         settler
	Outbox         outbox.Emitter
	Policy         Policy
	Logger         *logger.Logger
	PlatformUserID uuid.UUID
}

type service struct {
	repo     Repository
	db       txRunner
	poster   settler
	outbox   outbox.Emitter
	policy   Policy
	logg     *logger.Logger
	platform uuid.UUID
	now      func() time.Time
}

var errDuplicateReference = errors.New("escrow reference already used")

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "escrow repository required")
	case params.DB == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	case params.Poster == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet poster required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	case params.Policy == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "marketplace policy required")
	}
	return &service{
		repo:     params.Repository,
		db:       params.DB,
		poster:   params.Poster,
		outbox:   params.Outbox,
		policy:   params.Policy,
		logg:     params.Logger,
		platform: params.PlatformUserID,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateListing(ctx context.Context, input CreateListingInput) (*models.Listing, error) {
	title := strings.TrimSpace(input.Title)
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.Price <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	terms, err := s.policy.TermsFor(ctx, input.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load marketplace terms")
	}
	if terms.ActiveListingLimit > 0 {
		open, err := s.repo.CountOpenListings(ctx, input.SellerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count listings")
		}
		if open >= int64(terms.ActiveListingLimit) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "active listing limit reached").
				WithDetails(map[string]any{"limit": terms.ActiveListingLimit})
		}
	}

	listing := &models.Listing{
		ID:                uuid.New(),
		SellerID:          input.SellerID,
		Title:             title,
		Price:             input.Price,
		Status:            enums.ListingStatusActive,
		FulfillmentStatus: enums.FulfillmentUnfulfilled,
	}
	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
	}
	return listing, nil
}

func (s *service) Buy(ctx context.Context, input BuyInput) (*Result, error) {
	if input.ListingID == uuid.Nil || input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id and buyer id required")
	}
	ctx = s.logContext(ctx, input.ListingID)

	reference := strings.TrimSpace(input.Reference)
	if reference != "" {
		if res, err := s.replayBuy(ctx, input, reference); res != nil || err != nil {
			return res, err
		}
	} else {
		reference = fmt.Sprintf("escrow:%s:%s", input.ListingID, uuid.NewString())
	}

	listing, err := s.loadListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != enums.ListingStatusActive {
		return nil, listingUnavailable(listing)
	}
	if listing.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot buy your own listing")
	}

	seller := listing.SellerID
	txn := &models.EscrowTransaction{
		ID:         uuid.New(),
		ListingID:  listing.ID,
		SenderID:   input.BuyerID,
		ReceiverID: seller,
		Amount:     listing.Price,
		Status:     enums.TransactionStatusPending,
		Reference:  reference,
	}

	res, err := s.poster.Settle(ctx, wallets.Settlement{
		Operation: "escrow_buy",
		Guard: func(ctx context.Context, tx *gorm.DB) (bool, error) {
			repo := s.repo.WithTx(tx)
			if err := repo.CreateTransaction(ctx, txn); err != nil {
				if db.IsUniqueViolation(err, "") {
					return false, errDuplicateReference
				}
				return false, err
			}
			claimed, err := repo.ClaimListing(ctx, listing.ID, input.BuyerID, txn.ID)
			if err != nil {
				return false, err
			}
			if !claimed {
				return false, listingUnavailable(listing)
			}
			return true, s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventEscrowFundsHeld,
				AggregateType: enums.AggregateEscrowTransaction,
				AggregateID:   txn.ID,
				Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: string(enums.UserRoleUser)},
				Data: payloads.EscrowFundsHeldEvent{
					TransactionID: txn.ID,
					ListingID:     listing.ID,
					BuyerID:       input.BuyerID,
					SellerID:      seller,
					Amount:        txn.Amount,
					Reference:     reference,
				},
			})
		},
		Postings: []wallets.PostingInput{{
			UserID:         input.BuyerID,
			Kind:           enums.LedgerEntryEscrowHold,
			AvailableDelta: -txn.Amount,
			HeldDelta:      txn.Amount,
			Reference:      reference,
			CounterpartyID: &seller,
			Metadata:       map[string]any{"listing_id": listing.ID.String(), "transaction_id": txn.ID.String()},
		}},
	})
	if errors.Is(err, errDuplicateReference) {
		if replay, replayErr := s.replayBuy(ctx, input, reference); replay != nil || replayErr != nil {
			return replay, replayErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "escrow reference already used")
	}
	if err != nil {
		return nil, err
	}
	return s.processed(ctx, listing.ID, txn.ID, res)
}

// replayBuy returns the stored result when reference already names a
// transaction for the same listing and buyer.
func (s *service) replayBuy(ctx context.Context, input BuyInput, reference string) (*Result, error) {
	existing, err := s.repo.FindTransactionByReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if existing == nil {
		return nil, nil
	}
	if existing.ListingID != input.ListingID || existing.SenderID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "reference belongs to a different purchase")
	}
	listing, err := s.loadListing(ctx, existing.ListingID)
	if err != nil {
		return nil, err
	}
	return &Result{Listing: listing, Transaction: existing, Outcome: OutcomeAlreadyProcessed}, nil
}

func (s *service) MarkShipped(ctx context.Context, input ShipInput) (*Result, error) {
	if input.ListingID == uuid.Nil || input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id and seller id required")
	}
	ctx = s.logContext(ctx, input.ListingID)

	listing, err := s.loadListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != input.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can mark a listing shipped")
	}
	if listing.FulfillmentStatus == enums.FulfillmentShipped && listing.Status != enums.ListingStatusActive {
		return s.current(ctx, listing, OutcomeAlreadyProcessed)
	}
	if listing.Status != enums.ListingStatusPending || listing.TransactionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing has no open purchase")
	}

	txnID := *listing.TransactionID
	shipped := false
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		at := s.now()
		ok, err := s.repo.WithTx(tx).MarkShipped(ctx, listing.ID, at)
		if err != nil || !ok {
			return err
		}
		shipped = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowShipped,
			AggregateType: enums.AggregateEscrowTransaction,
			AggregateID:   txnID,
			Actor:         &outbox.ActorRef{UserID: input.SellerID, Role: string(enums.UserRoleUser)},
			Data: payloads.EscrowShippedEvent{
				TransactionID: txnID,
				ListingID:     listing.ID,
				SellerID:      input.SellerID,
				ShippedAt:     at,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark shipped")
	}

	listing, err = s.loadListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if !shipped {
		if listing.FulfillmentStatus == enums.FulfillmentShipped {
			return s.current(ctx, listing, OutcomeAlreadyProcessed)
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing has no open purchase")
	}
	return s.current(ctx, listing, OutcomeProcessed)
}

func (s *service) Release(ctx context.Context, input ReleaseInput) (*Result, error) {
	if input.ListingID == uuid.Nil || input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id and actor required")
	}
	ctx = s.logContext(ctx, input.ListingID)

	listing, err := s.loadListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.TransactionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing has no open purchase")
	}
	if !input.Actor.IsAdmin() && (listing.BuyerID == nil || *listing.BuyerID != input.Actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or an admin can release funds")
	}
	txn, err := s.loadTransaction(ctx, *listing.TransactionID)
	if err != nil {
		return nil, err
	}
	switch txn.Status {
	case enums.TransactionStatusCompleted:
		return &Result{Listing: listing, Transaction: txn, Outcome: OutcomeAlreadyProcessed}, nil
	case enums.TransactionStatusFailed:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction was refunded")
	}
	if listing.Status != enums.ListingStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not pending")
	}

	terms, err := s.policy.TermsFor(ctx, listing.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load marketplace terms")
	}
	fee, net, err := money.Split(txn.Amount, terms.CommissionBps)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute platform fee")
	}

	buyer := txn.SenderID
	seller := txn.ReceiverID
	postings := []wallets.PostingInput{{
		UserID:         buyer,
		Kind:           enums.LedgerEntryEscrowSettled,
		HeldDelta:      -txn.Amount,
		Reference:      txn.Reference,
		CounterpartyID: &seller,
	}}
	if net > 0 {
		postings = append(postings, wallets.PostingInput{
			UserID:         seller,
			Kind:           enums.LedgerEntryEscrowRelease,
			AvailableDelta: net,
			Reference:      txn.Reference,
			CounterpartyID: &buyer,
			Metadata:       map[string]any{"gross": txn.Amount, "platform_fee": fee, "commission_bps": terms.CommissionBps},
		})
	}
	if s.platform != uuid.Nil && fee > 0 {
		postings = append(postings, wallets.PostingInput{
			UserID:         s.platform,
			Kind:           enums.LedgerEntryPlatformFee,
			AvailableDelta: fee,
			Reference:      txn.Reference,
			CounterpartyID: &seller,
		})
	}

	res, err := s.poster.Settle(ctx, wallets.Settlement{
		Operation: "escrow_release",
		Guard: func(ctx context.Context, tx *gorm.DB) (bool, error) {
			repo := s.repo.WithTx(tx)
			at := s.now()
			won, err := repo.CompleteTransaction(ctx, txn.ID, fee, net, at)
			if err != nil || !won {
				return false, err
			}
			sold, err := repo.SellListing(ctx, listing.ID, txn.ID, at)
			if err != nil {
				return false, err
			}
			if !sold {
				return false, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not pending")
			}
			return true, s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventEscrowReleased,
				AggregateType: enums.AggregateEscrowTransaction,
				AggregateID:   txn.ID,
				Actor:         actorRef(input.Actor),
				Data: payloads.EscrowReleasedEvent{
					TransactionID: txn.ID,
					ListingID:     listing.ID,
					BuyerID:       buyer,
					SellerID:      seller,
					Amount:        txn.Amount,
					PlatformFee:   fee,
					NetAmount:     net,
					Reference:     txn.Reference,
					ReleasedBy:    input.Actor.UserID,
				},
			})
		},
		Postings: postings,
	})
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		return s.afterLostTransition(ctx, listing.ID, txn.ID, enums.TransactionStatusCompleted)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"reference":    txn.Reference,
			"amount":       txn.Amount,
			"platform_fee": fee,
			"net_amount":   net,
		}), "escrow released")
	}
	return s.processed(ctx, listing.ID, txn.ID, res)
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*Result, error) {
	if input.ListingID == uuid.Nil || input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id and actor required")
	}
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only an admin can refund a purchase")
	}
	ctx = s.logContext(ctx, input.ListingID)

	listing, err := s.loadListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if input.TransactionID != nil {
		if done, err := s.refundTarget(ctx, listing, *input.TransactionID); done != nil || err != nil {
			return done, err
		}
	}
	if listing.TransactionID == nil {
		latest, err := s.repo.LatestTransaction(ctx, listing.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}
		if latest != nil && latest.Status == enums.TransactionStatusFailed {
			return &Result{Listing: listing, Transaction: latest, Outcome: OutcomeAlreadyProcessed}, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing has no open purchase")
	}
	txn, err := s.loadTransaction(ctx, *listing.TransactionID)
	if err != nil {
		return nil, err
	}
	switch txn.Status {
	case enums.TransactionStatusFailed:
		return &Result{Listing: listing, Transaction: txn, Outcome: OutcomeAlreadyProcessed}, nil
	case enums.TransactionStatusCompleted:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already released")
	}

	buyer := txn.SenderID
	res, err := s.poster.Settle(ctx, wallets.Settlement{
		Operation: "escrow_refund",
		Guard: func(ctx context.Context, tx *gorm.DB) (bool, error) {
			repo := s.repo.WithTx(tx)
			won, err := repo.FailTransaction(ctx, txn.ID, s.now())
			if err != nil || !won {
				return false, err
			}
			relisted, err := repo.RelistListing(ctx, listing.ID, txn.ID)
			if err != nil {
				return false, err
			}
			if !relisted {
				return false, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not pending")
			}
			return true, s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventEscrowRefunded,
				AggregateType: enums.AggregateEscrowTransaction,
				AggregateID:   txn.ID,
				Actor:         actorRef(input.Actor),
				Data: payloads.EscrowRefundedEvent{
					TransactionID: txn.ID,
					ListingID:     listing.ID,
					BuyerID:       buyer,
					Amount:        txn.Amount,
					Reference:     txn.Reference,
					RefundedBy:    input.Actor.UserID,
				},
			})
		},
		Postings: []wallets.PostingInput{{
			UserID:         buyer,
			Kind:           enums.LedgerEntryEscrowRefund,
			AvailableDelta: txn.Amount,
			HeldDelta:      -txn.Amount,
			Reference:      txn.Reference,
			Metadata:       map[string]any{"listing_id": listing.ID.String(), "refunded_by": input.Actor.UserID.String()},
		}},
	})
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		return s.afterLostTransition(ctx, listing.ID, txn.ID, enums.TransactionStatusFailed)
	}
	return s.processed(ctx, listing.ID, txn.ID, res)
}

// refundTarget checks a refund aimed at one purchase. An already refunded
// target is a replay; a target that is not the listing's open purchase is a
// conflict. A nil result with no error means the target is open.
func (s *service) refundTarget(ctx context.Context, listing *models.Listing, txnID uuid.UUID) (*Result, error) {
	target, err := s.loadTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if target.ListingID != listing.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction does not belong to listing")
	}
	if target.Status == enums.TransactionStatusFailed {
		return &Result{Listing: listing, Transaction: target, Outcome: OutcomeAlreadyProcessed}, nil
	}
	if listing.TransactionID == nil || *listing.TransactionID != txnID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not the listing's open purchase").
			WithDetails(map[string]any{"transaction_id": txnID.String(), "status": string(target.Status)})
	}
	return nil, nil
}

func (s *service) Get(ctx context.Context, listingID uuid.UUID) (*Result, error) {
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return s.current(ctx, listing, OutcomeProcessed)
}

// afterLostTransition resolves a declined status CAS: if another caller
// already reached want, this call is a replay.
func (s *service) afterLostTransition(ctx context.Context, listingID, txnID uuid.UUID, want enums.TransactionStatus) (*Result, error) {
	txn, err := s.loadTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.Status != want {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is "+string(txn.Status))
	}
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return &Result{Listing: listing, Transaction: txn, Outcome: OutcomeAlreadyProcessed}, nil
}

func (s *service) processed(ctx context.Context, listingID, txnID uuid.UUID, res *wallets.SettlementResult) (*Result, error) {
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	txn, err := s.loadTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	out := &Result{Listing: listing, Transaction: txn, Outcome: OutcomeProcessed}
	for _, posting := range res.Postings {
		if posting.LedgerWriteFailed {
			out.LedgerWriteFailed = true
		}
	}
	return out, nil
}

func (s *service) current(ctx context.Context, listing *models.Listing, outcome Outcome) (*Result, error) {
	var (
		txn *models.EscrowTransaction
		err error
	)
	if listing.TransactionID != nil {
		txn, err = s.repo.FindTransaction(ctx, *listing.TransactionID)
	} else {
		txn, err = s.repo.LatestTransaction(ctx, listing.ID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	return &Result{Listing: listing, Transaction: txn, Outcome: outcome}, nil
}

func (s *service) loadListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.FindListing(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if listing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return listing, nil
}

func (s *service) loadTransaction(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	txn, err := s.repo.FindTransaction(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func (s *service) logContext(ctx context.Context, listingID uuid.UUID) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithListingID(ctx, listingID.String())
}

func listingUnavailable(listing *models.Listing) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not available").
		WithDetails(map[string]any{"listing_id": listing.ID.String()})
}

func actorRef(actor Actor) *outbox.ActorRef {
	role := actor.Role
	if role == "" {
		role = enums.UserRoleUser
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(role)}
}

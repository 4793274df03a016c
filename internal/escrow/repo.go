package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
)

// Repository persists listings and escrow transactions. Every state change
// is a conditional update on the expected current status and reports
// whether this caller won the transition.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateListing(ctx context.Context, listing *models.Listing) error
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	CountOpenListings(ctx context.Context, sellerID uuid.UUID) (int64, error)
	CreateTransaction(ctx context.Context, txn *models.EscrowTransaction) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	FindTransactionByReference(ctx context.Context, reference string) (*models.EscrowTransaction, error)
	LatestTransaction(ctx context.Context, listingID uuid.UUID) (*models.EscrowTransaction, error)
	ClaimListing(ctx context.Context, listingID, buyerID, txnID uuid.UUID) (bool, error)
	MarkShipped(ctx context.Context, listingID uuid.UUID, at time.Time) (bool, error)
	CompleteTransaction(ctx context.Context, txnID uuid.UUID, fee, net int64, at time.Time) (bool, error)
	FailTransaction(ctx context.Context, txnID uuid.UUID, at time.Time) (bool, error)
	SellListing(ctx context.Context, listingID, txnID uuid.UUID, at time.Time) (bool, error)
	RelistListing(ctx context.Context, listingID, txnID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an escrow repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateListing(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) CountOpenListings(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("seller_id = ? AND status IN ?", sellerID, []enums.ListingStatus{enums.ListingStatusActive, enums.ListingStatusPending}).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.EscrowTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransaction(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	return r.firstTransaction(ctx, r.db.Where("id = ?", id))
}

func (r *repository) FindTransactionByReference(ctx context.Context, reference string) (*models.EscrowTransaction, error) {
	return r.firstTransaction(ctx, r.db.Where("reference = ?", reference))
}

func (r *repository) LatestTransaction(ctx context.Context, listingID uuid.UUID) (*models.EscrowTransaction, error) {
	return r.firstTransaction(ctx, r.db.Where("listing_id = ?", listingID).Order("created_at DESC").Order("id DESC"))
}

func (r *repository) firstTransaction(ctx context.Context, query *gorm.DB) (*models.EscrowTransaction, error) {
	var txn models.EscrowTransaction
	err := query.WithContext(ctx).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ClaimListing(ctx context.Context, listingID, buyerID, txnID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", listingID, enums.ListingStatusActive).
		UpdateColumns(map[string]any{
			"status":             enums.ListingStatusPending,
			"buyer_id":           buyerID,
			"transaction_id":     txnID,
			"fulfillment_status": enums.FulfillmentUnfulfilled,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) MarkShipped(ctx context.Context, listingID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND fulfillment_status = ?", listingID, enums.ListingStatusPending, enums.FulfillmentUnfulfilled).
		UpdateColumns(map[string]any{
			"fulfillment_status": enums.FulfillmentShipped,
			"shipped_at":         at.UTC(),
			"version":            gorm.Expr("version + 1"),
			"updated_at":         at.UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) CompleteTransaction(ctx context.Context, txnID uuid.UUID, fee, net int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowTransaction{}).
		Where("id = ? AND status = ?", txnID, enums.TransactionStatusPending).
		UpdateColumns(map[string]any{
			"status":       enums.TransactionStatusCompleted,
			"platform_fee": fee,
			"net_amount":   net,
			"completed_at": at.UTC(),
			"updated_at":   at.UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) FailTransaction(ctx context.Context, txnID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowTransaction{}).
		Where("id = ? AND status = ?", txnID, enums.TransactionStatusPending).
		UpdateColumns(map[string]any{
			"status":     enums.TransactionStatusFailed,
			"failed_at":  at.UTC(),
			"updated_at": at.UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) SellListing(ctx context.Context, listingID, txnID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND transaction_id = ?", listingID, enums.ListingStatusPending, txnID).
		UpdateColumns(map[string]any{
			"status":             enums.ListingStatusSold,
			"buyer_confirmed_at": at.UTC(),
			"version":            gorm.Expr("version + 1"),
			"updated_at":         at.UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) RelistListing(ctx context.Context, listingID, txnID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND transaction_id = ?", listingID, enums.ListingStatusPending, txnID).
		UpdateColumns(map[string]any{
			"status":             enums.ListingStatusActive,
			"buyer_id":           nil,
			"transaction_id":     nil,
			"fulfillment_status": enums.FulfillmentUnfulfilled,
			"shipped_at":         nil,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

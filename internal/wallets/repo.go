package wallets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/walletcore/pkg/db/models"
)

// Repository persists wallet rows. Balances only ever move through
// ApplyDelta; there is no setter for an absolute balance.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Ensure(ctx context.Context, userID uuid.UUID) error
	ApplyDelta(ctx context.Context, params deltaParams) (bool, error)
}

type deltaParams struct {
	UserID         uuid.UUID
	AvailableDelta int64
	HeldDelta      int64
	MinAvailable   int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Ensure creates an empty wallet for userID unless one already exists.
func (r *repository) Ensure(ctx context.Context, userID uuid.UUID) error {
	wallet := &models.Wallet{UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(wallet).Error
}

// ApplyDelta moves both balance components in one conditional statement and
// reports whether the guard held. balance is recomputed from the pre-update
// components plus both deltas so it can never drift from their sum.
func (r *repository) ApplyDelta(ctx context.Context, params deltaParams) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", params.UserID).
		Where("available_balance + ? >= ?", params.AvailableDelta, params.MinAvailable).
		Where("held_balance + ? >= 0", params.HeldDelta).
		UpdateColumns(map[string]any{
			"available_balance": gorm.Expr("available_balance + ?", params.AvailableDelta),
			"held_balance":      gorm.Expr("held_balance + ?", params.HeldDelta),
			"balance":           gorm.Expr("available_balance + held_balance + ?", params.AvailableDelta+params.HeldDelta),
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

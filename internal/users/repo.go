package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
)

// Repository exposes user profile persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindProfile loads a profile, returning nil when the user has none yet.
func (r *Repository) FindProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertPremium marks the user premium until expiresAt, creating the profile
// on first purchase.
func (r *Repository) UpsertPremium(ctx context.Context, userID uuid.UUID, expiresAt time.Time) error {
	now := time.Now().UTC()
	profile := &models.UserProfile{
		UserID:           userID,
		IsPremium:        true,
		PremiumStatus:    enums.PremiumStatusActive,
		PremiumExpiresAt: &expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_premium", "premium_status", "premium_expires_at", "updated_at"}),
		}).
		Create(profile).Error
}

// ExpirePremium flips every active profile whose expiry has passed and
// returns how many were updated.
func (r *Repository) ExpirePremium(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("premium_status = ? AND premium_expires_at IS NOT NULL AND premium_expires_at <= ?", enums.PremiumStatusActive, now.UTC()).
		UpdateColumns(map[string]any{
			"is_premium":     false,
			"premium_status": enums.PremiumStatusExpired,
			"updated_at":     now.UTC(),
		})
	return res.RowsAffected, res.Error
}

package ads

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/db/models"
)

// Repository persists ad campaigns.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, campaign *models.AdCampaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AdCampaign, error) {
	var campaign models.AdCampaign
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *Repository) FindByReference(ctx context.Context, reference string) (*models.AdCampaign, error) {
	var campaign models.AdCampaign
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&campaign).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *Repository) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit int) ([]models.AdCampaign, error) {
	var campaigns []models.AdCampaign
	err := r.db.WithContext(ctx).
		Where("advertiser_id = ?", advertiserID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, err
}

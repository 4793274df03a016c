package payments

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/db"
	"github.com/angelmondragon/walletcore/pkg/db/models"
)

// ClaimRepository persists which user consumed each gateway reference. The
// primary key on reference is the durable half of gateway idempotency; the
// Redis guard only short-circuits requests that are still in flight.
type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(conn *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: conn}
}

// errReferenceClaimed means the reference already belongs to a payment. The
// insert that found it has aborted tx on postgres, so callers must roll back.
var errReferenceClaimed = errors.New("gateway reference already claimed")

// ClaimTx inserts claim inside tx.
func (r *ClaimRepository) ClaimTx(ctx context.Context, tx *gorm.DB, claim *models.GatewayPayment) error {
	err := tx.WithContext(ctx).Create(claim).Error
	if db.IsUniqueViolation(err, "") {
		return errReferenceClaimed
	}
	return err
}

func (r *ClaimRepository) Find(ctx context.Context, reference string) (*models.GatewayPayment, error) {
	var claim models.GatewayPayment
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	"github.com/angelmondragon/walletcore/pkg/pagination"
)

// Repository manages persistence for ledger entries. Entries are never
// deleted; the only update moves a pending entry to completed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
	FindByReference(ctx context.Context, userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (*models.LedgerEntry, error)
	LockByReference(ctx context.Context, userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (*models.LedgerEntry, error)
	List(ctx context.Context, params listEntriesParams) ([]models.LedgerEntry, error)
	ListByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error)
}

type listEntriesParams struct {
	UserID uuid.UUID
	Status *enums.LedgerEntryStatus
	Kinds  []enums.LedgerEntryKind
	From   *time.Time
	To     *time.Time
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ? AND status = ?", id, enums.LedgerEntryStatusPending).
		Update("status", enums.LedgerEntryStatusCompleted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindByReference(ctx context.Context, userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (*models.LedgerEntry, error) {
	return r.findByReference(r.db.WithContext(ctx), userID, kind, reference)
}

// LockByReference reads the entry with a row lock held until the enclosing
// transaction ends. sqlite has no row locks and ignores the clause.
func (r *repository) LockByReference(ctx context.Context, userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (*models.LedgerEntry, error) {
	return r.findByReference(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID, kind, reference)
}

func (r *repository) findByReference(query *gorm.DB, userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := query.
		Where("user_id = ? AND entry_kind = ? AND reference = ?", userID, kind, reference).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) List(ctx context.Context, params listEntriesParams) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ?", params.UserID)

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if len(params.Kinds) > 0 {
		query = query.Where("entry_kind IN ?", params.Kinds)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", params.From.UTC())
	}
	if params.To != nil {
		query = query.Where("created_at < ?", params.To.UTC())
	}
	if params.Cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.LedgerEntry
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(params.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

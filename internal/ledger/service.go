package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/db"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/outbox"
	"github.com/angelmondragon/walletcore/pkg/outbox/payloads"
	"github.com/angelmondragon/walletcore/pkg/pagination"
)

// ErrAlreadyRecorded means (user, kind, reference) already has an entry.
var ErrAlreadyRecorded = errors.New("ledger entry already recorded")

// Service exposes the append-only ledger.
type Service interface {
	Append(ctx context.Context, input AppendInput) (*models.LedgerEntry, error)
	ReserveTx(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error)
	Complete(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error)
	FindByReference(ctx context.Context, userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (*models.LedgerEntry, error)
	FindByReferenceTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind enums.LedgerEntryKind, reference string, lock bool) (*models.LedgerEntry, error)
	ListByUser(ctx context.Context, params ListParams) (*ListResult, error)
	ListByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AppendInput describes one completed posting and the wallet snapshot taken
// right after it was applied.
type AppendInput struct {
	UserID           uuid.UUID
	EntryKind        enums.LedgerEntryKind
	Status           enums.LedgerEntryStatus
	Amount           int64
	WalletEffect     int64
	HeldEffect       int64
	Reference        string
	CounterpartyID   *uuid.UUID
	AvailableBalance int64
	HeldBalance      int64
	Balance          int64
	Metadata         map[string]any
}

// ListParams filters a user's ledger history.
type ListParams struct {
	UserID uuid.UUID
	Status *enums.LedgerEntryStatus
	Kinds  []enums.LedgerEntryKind
	From   *time.Time
	To     *time.Time
	Limit  int
	Cursor string
}

// ListResult wraps returned entries and the cursor for the next page.
type ListResult struct {
	Items  []models.LedgerEntry `json:"items"`
	Cursor string               `json:"cursor"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
}

// NewService wires ledger dependencies. Every appended entry is published as a
// ledger_entry_recorded outbox event in the same transaction.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter}, nil
}

// Append records a finished entry and its outbox event in one transaction.
// A duplicate (user, kind, reference) fails with CONFLICT wrapping
// ErrAlreadyRecorded.
func (s *service) Append(ctx context.Context, input AppendInput) (*models.LedgerEntry, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = enums.LedgerEntryStatusCompleted
	}
	entry, err := newEntry(input, status)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}
		return s.emitRecorded(ctx, tx, entry)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, alreadyRecorded(err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	return entry, nil
}

// ReserveTx inserts a pending entry inside the caller's transaction, so the
// reference is claimed atomically with the wallet change it describes. A
// duplicate fails with CONFLICT wrapping ErrAlreadyRecorded; other database
// errors come back unwrapped for the caller's retry policy.
func (s *service) ReserveTx(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	entry, err := newEntry(input, enums.LedgerEntryStatusPending)
	if err != nil {
		return nil, err
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, alreadyRecorded(err)
		}
		return nil, err
	}
	return entry, nil
}

// Complete marks a reserved entry completed and emits ledger_entry_recorded.
// Completing an entry twice is a no-op.
func (s *service) Complete(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if entry == nil || entry.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger entry required")
	}
	if entry.Status == enums.LedgerEntryStatusCompleted {
		return entry, nil
	}
	done := *entry
	done.Status = enums.LedgerEntryStatusCompleted

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).MarkCompleted(ctx, entry.ID)
		if err != nil || !moved {
			return err
		}
		return s.emitRecorded(ctx, tx, &done)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete ledger entry")
	}
	return &done, nil
}

func newEntry(input AppendInput, status enums.LedgerEntryStatus) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{
		ID:               uuid.New(),
		UserID:           input.UserID,
		EntryKind:        input.EntryKind,
		Amount:           input.Amount,
		WalletEffect:     input.WalletEffect,
		HeldEffect:       input.HeldEffect,
		Status:           status,
		Reference:        strings.TrimSpace(input.Reference),
		CounterpartyID:   input.CounterpartyID,
		AvailableBalance: input.AvailableBalance,
		HeldBalance:      input.HeldBalance,
		Balance:          input.Balance,
		CreatedAt:        time.Now().UTC(),
	}
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ledger metadata")
		}
		entry.Metadata = raw
	}
	return entry, nil
}

func (s *service) emitRecorded(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLedgerEntryRecorded,
		AggregateType: enums.AggregateLedgerEntry,
		AggregateID:   entry.ID,
		Data:          recordedEvent(entry),
		OccurredAt:    entry.CreatedAt,
	})
}

func alreadyRecorded(cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, errors.Join(ErrAlreadyRecorded, cause), "ledger entry already recorded")
}

func (s *service) FindByReference(ctx context.Context, userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (*models.LedgerEntry, error) {
	if userID == uuid.Nil || strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and reference required")
	}
	entry, err := s.repo.FindByReference(ctx, userID, kind, strings.TrimSpace(reference))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find ledger entry")
	}
	return entry, nil
}

// FindByReferenceTx reads inside tx. With lock set the row stays locked
// until tx ends, which serializes callers deciding on the same entry.
func (s *service) FindByReferenceTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind enums.LedgerEntryKind, reference string, lock bool) (*models.LedgerEntry, error) {
	repo := s.repo.WithTx(tx)
	reference = strings.TrimSpace(reference)
	if lock {
		return repo.LockByReference(ctx, userID, kind, reference)
	}
	return repo.FindByReference(ctx, userID, kind, reference)
}

func (s *service) ListByUser(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	for _, kind := range params.Kinds {
		if !kind.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid entry kind").
				WithDetails(map[string]any{"kind": kind})
		}
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid entry status")
	}
	if params.From != nil && params.To != nil && !params.From.Before(*params.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}

	query := listEntriesParams{
		UserID: params.UserID,
		Status: params.Status,
		Kinds:  params.Kinds,
		From:   params.From,
		To:     params.To,
		Limit:  pagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	page, cursor := pagination.NextCursor(rows, params.Limit, func(e models.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	if page == nil {
		page = []models.LedgerEntry{}
	}
	return &ListResult{Items: page, Cursor: cursor}, nil
}

func (s *service) ListByReference(ctx context.Context, reference string) ([]models.LedgerEntry, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}
	rows, err := s.repo.ListByReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries by reference")
	}
	return rows, nil
}

func (in AppendInput) validate() error {
	if in.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !in.EntryKind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid entry kind")
	}
	if in.Status != "" && !in.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid entry status")
	}
	if strings.TrimSpace(in.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}
	if in.Amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	if in.Balance != in.AvailableBalance+in.HeldBalance {
		return pkgerrors.New(pkgerrors.CodeValidation, "balance snapshot does not add up")
	}
	return nil
}

func recordedEvent(entry *models.LedgerEntry) payloads.LedgerEntryRecordedEvent {
	return payloads.LedgerEntryRecordedEvent{
		EntryID:          entry.ID,
		UserID:           entry.UserID,
		EntryKind:        entry.EntryKind,
		Status:           entry.Status,
		Amount:           entry.Amount,
		WalletEffect:     entry.WalletEffect,
		HeldEffect:       entry.HeldEffect,
		Reference:        entry.Reference,
		CounterpartyID:   entry.CounterpartyID,
		AvailableBalance: entry.AvailableBalance,
		HeldBalance:      entry.HeldBalance,
		Balance:          entry.Balance,
		CreatedAt:        entry.CreatedAt,
	}
}

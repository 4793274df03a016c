package wallets

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/internal/ledger"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/metrics"
)

type ledgerAppender interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.LedgerEntry, error)
	Complete(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error)
	FindByReference(ctx context.Context, userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (*models.LedgerEntry, error)
}

// PostingInput is a wallet delta paired with the ledger entry that explains
// it. Reference plus Kind identifies the posting per user.
type PostingInput struct {
	UserID               uuid.UUID
	Kind                 enums.LedgerEntryKind
	AvailableDelta       int64
	HeldDelta            int64
	ExpectedMinAvailable int64
	Amount               int64
	Reference            string
	CounterpartyID       *uuid.UUID
	Metadata             map[string]any
}

func (p PostingInput) validate() error {
	if !p.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid entry kind")
	}
	if strings.TrimSpace(p.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}
	if p.Amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	return p.delta().validate()
}

func (p PostingInput) delta() DeltaInput {
	return DeltaInput{
		UserID:               p.UserID,
		AvailableDelta:       p.AvailableDelta,
		HeldDelta:            p.HeldDelta,
		ExpectedMinAvailable: p.ExpectedMinAvailable,
	}
}

func (p PostingInput) amount() int64 {
	if p.Amount > 0 {
		return p.Amount
	}
	return max(abs(p.AvailableDelta), abs(p.HeldDelta))
}

// PostingResult reports what happened to one posting. LedgerWriteFailed means
// the wallet moved but its ledger entry could not be completed; the entry
// stays pending, the wallet change stands and reconciliation will surface
// the gap.
type PostingResult struct {
	UserID            uuid.UUID             `json:"user_id"`
	Kind              enums.LedgerEntryKind `json:"entry_kind"`
	Balances          Balances              `json:"balances"`
	Entry             *models.LedgerEntry   `json:"entry,omitempty"`
	AlreadyPosted     bool                  `json:"already_posted"`
	LedgerWriteFailed bool                  `json:"ledger_write_failed"`
}

// Guard runs first inside a settlement transaction. Returning false skips the
// postings and commits nothing; it is how a lost state transition declines.
type Guard func(ctx context.Context, tx *gorm.DB) (bool, error)

// Settlement groups a state transition with the wallet postings it pays for.
// The guard and every delta commit together or not at all.
type Settlement struct {
	Operation string
	Guard     Guard
	Postings  []PostingInput
}

type SettlementResult struct {
	Applied  bool
	Postings []PostingResult
}

// PosterParams configures a Poster.
type PosterParams struct {
	DB      txRunner
	Mutator *Mutator
	Ledger  ledgerAppender
	Logger  *logger.Logger
	Metrics *metrics.WalletMetrics
}

// Poster applies wallet mutations and records their ledger entries.
type Poster struct {
	db      txRunner
	mutator *Mutator
	ledger  ledgerAppender
	logg    *logger.Logger
	metrics *metrics.WalletMetrics
}

func NewPoster(params PosterParams) (*Poster, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Mutator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet mutator required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger required")
	}
	return &Poster{
		db:      params.DB,
		mutator: params.Mutator,
		ledger:  params.Ledger,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Post applies a single posting. A posting whose ledger entry already exists
// is not applied again, including when a concurrent Post with the same
// reference wins the race.
func (p *Poster) Post(ctx context.Context, in PostingInput) (*PostingResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if res, err := p.alreadyPosted(ctx, in); res != nil || err != nil {
		return res, err
	}

	res, err := p.Settle(ctx, Settlement{Operation: string(in.Kind), Postings: []PostingInput{in}})
	if errors.Is(err, ErrAlreadyPosted) {
		if replay, findErr := p.alreadyPosted(ctx, in); replay != nil || findErr != nil {
			return replay, findErr
		}
	}
	if err != nil {
		return nil, err
	}
	return &res.Postings[0], nil
}

func (p *Poster) alreadyPosted(ctx context.Context, in PostingInput) (*PostingResult, error) {
	existing, err := p.ledger.FindByReference(ctx, in.UserID, in.Kind, in.Reference)
	if err != nil || existing == nil {
		return nil, err
	}
	return &PostingResult{
		UserID: in.UserID,
		Kind:   in.Kind,
		Balances: Balances{
			Available: existing.AvailableBalance,
			Held:      existing.HeldBalance,
			Total:     existing.Balance,
		},
		Entry:         existing,
		AlreadyPosted: true,
	}, nil
}

// Settle runs the guard and all postings in one transaction, retrying on
// contention. Each posting reserves its ledger entry in that transaction, so
// a reference already taken rolls everything back with ErrAlreadyPosted.
// Entries are completed after commit.
func (p *Poster) Settle(ctx context.Context, s Settlement) (*SettlementResult, error) {
	if len(s.Postings) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement has no postings")
	}
	for _, posting := range s.Postings {
		if err := posting.validate(); err != nil {
			return nil, err
		}
	}

	var (
		applied  bool
		balances []Balances
		entries  []*models.LedgerEntry
	)
	err := p.mutator.Retry(ctx, func(ctx context.Context) error {
		applied = false
		balances = balances[:0]
		entries = entries[:0]
		err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
			if s.Guard != nil {
				ok, err := s.Guard(ctx, tx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			for _, posting := range s.Postings {
				b, err := p.mutator.ApplyDeltaTx(ctx, tx, posting.delta())
				if err != nil {
					return err
				}
				entry, err := p.ledger.ReserveTx(ctx, tx, posting.entry(b))
				if err != nil {
					return err
				}
				balances = append(balances, b)
				entries = append(entries, entry)
			}
			applied = true
			return nil
		})
		if err != nil && pkgerrors.As(err) == nil {
			return classifyDBError(s.Postings[0].UserID, err)
		}
		return err
	})
	if !applied && err == nil {
		return &SettlementResult{Applied: false}, nil
	}
	if errors.Is(err, ErrAlreadyPosted) {
		return nil, err
	}
	p.mutator.RecordOutcome(err)
	if err != nil {
		return nil, err
	}

	ledgerCtx := context.WithoutCancel(ctx)
	result := &SettlementResult{Applied: true, Postings: make([]PostingResult, 0, len(s.Postings))}
	for i, posting := range s.Postings {
		result.Postings = append(result.Postings, p.record(ledgerCtx, s.Operation, posting, balances[i], entries[i]))
	}
	return result, nil
}

func (p PostingInput) entry(b Balances) ledger.AppendInput {
	return ledger.AppendInput{
		UserID:           p.UserID,
		EntryKind:        p.Kind,
		Amount:           p.amount(),
		WalletEffect:     p.AvailableDelta,
		HeldEffect:       p.HeldDelta,
		Reference:        p.Reference,
		CounterpartyID:   p.CounterpartyID,
		AvailableBalance: b.Available,
		HeldBalance:      b.Held,
		Balance:          b.Total,
		Metadata:         p.Metadata,
	}
}

func (p *Poster) record(ctx context.Context, operation string, posting PostingInput, b Balances, reserved *models.LedgerEntry) PostingResult {
	out := PostingResult{UserID: posting.UserID, Kind: posting.Kind, Balances: b, Entry: reserved}
	entry, err := p.ledger.Complete(ctx, reserved)
	if err != nil {
		out.LedgerWriteFailed = true
		p.metrics.IncLedgerWriteFailure(string(posting.Kind))
		if p.logg != nil {
			logCtx := p.logg.WithFields(ctx, map[string]any{
				"operation":       operation,
				"user_id":         posting.UserID.String(),
				"reference":       posting.Reference,
				"entry_kind":      string(posting.Kind),
				"available_delta": posting.AvailableDelta,
				"held_delta":      posting.HeldDelta,
			})
			p.logg.Error(logCtx, "ledger write failed", err)
		}
		return out
	}
	out.Entry = entry
	return out
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

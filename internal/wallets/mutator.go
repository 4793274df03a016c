package wallets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 25 * time.Millisecond
	defaultTimeout     = 5 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DeltaInput is one signed change to a wallet. The change applies only if
// afterwards available >= ExpectedMinAvailable and held >= 0.
type DeltaInput struct {
	UserID               uuid.UUID
	AvailableDelta       int64
	HeldDelta            int64
	ExpectedMinAvailable int64
}

func (in DeltaInput) validate() error {
	if in.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if in.AvailableDelta == 0 && in.HeldDelta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must move at least one balance")
	}
	if in.ExpectedMinAvailable < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "expected minimum cannot be negative")
	}
	return nil
}

// Balances is a wallet snapshot. Total is always Available + Held.
type Balances struct {
	Available int64 `json:"available"`
	Held      int64 `json:"held"`
	Total     int64 `json:"total"`
	Version   int64 `json:"-"`
}

// MutatorParams configures a Mutator.
type MutatorParams struct {
	Repository  Repository
	DB          txRunner
	Logger      *logger.Logger
	Metrics     *metrics.WalletMetrics
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
}

// Mutator is the only writer of wallet balances.
type Mutator struct {
	repo        Repository
	db          txRunner
	logg        *logger.Logger
	metrics     *metrics.WalletMetrics
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewMutator validates params and applies defaults for unset retry knobs.
func NewMutator(params MutatorParams) (*Mutator, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	m := &Mutator{
		repo:        params.Repository,
		db:          params.DB,
		logg:        params.Logger,
		metrics:     params.Metrics,
		maxAttempts: params.MaxAttempts,
		backoff:     params.Backoff,
		timeout:     params.Timeout,
		sleep:       sleepContext,
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = defaultMaxAttempts
	}
	if m.backoff <= 0 {
		m.backoff = defaultBackoff
	}
	if m.timeout <= 0 {
		m.timeout = defaultTimeout
	}
	return m, nil
}

// ApplyDelta applies in atomically and returns the post-mutation snapshot.
// Contention is retried with linear backoff; once attempts run out the call
// fails with BUSY. The mutation runs detached from ctx cancellation so a
// client disconnect cannot abandon it halfway.
func (m *Mutator) ApplyDelta(ctx context.Context, in DeltaInput) (Balances, error) {
	if err := in.validate(); err != nil {
		return Balances{}, err
	}
	var out Balances
	err := m.Retry(ctx, func(ctx context.Context) error {
		err := m.db.WithTx(ctx, func(tx *gorm.DB) error {
			b, err := m.ApplyDeltaTx(ctx, tx, in)
			if err != nil {
				return err
			}
			out = b
			return nil
		})
		if err != nil && pkgerrors.As(err) == nil {
			return classifyDBError(in.UserID, err)
		}
		return err
	})
	m.RecordOutcome(err)
	if err != nil {
		return Balances{}, err
	}
	return out, nil
}

// ApplyDeltaTx performs a single attempt inside the caller's transaction,
// creating the wallet on first credit. Contention surfaces as
// CONCURRENT_MODIFICATION for the caller to retry.
func (m *Mutator) ApplyDeltaTx(ctx context.Context, tx *gorm.DB, in DeltaInput) (Balances, error) {
	if err := in.validate(); err != nil {
		return Balances{}, err
	}
	repo := m.repo.WithTx(tx)
	params := deltaParams{
		UserID:         in.UserID,
		AvailableDelta: in.AvailableDelta,
		HeldDelta:      in.HeldDelta,
		MinAvailable:   in.ExpectedMinAvailable,
	}

	created := false
	for {
		applied, err := repo.ApplyDelta(ctx, params)
		if err != nil {
			return Balances{}, classifyDBError(in.UserID, err)
		}
		wallet, err := repo.FindByUserID(ctx, in.UserID)
		if err != nil {
			return Balances{}, classifyDBError(in.UserID, err)
		}
		if applied {
			if wallet == nil {
				return Balances{}, pkgerrors.New(pkgerrors.CodeInternal, "wallet vanished after update")
			}
			return Balances{
				Available: wallet.AvailableBalance,
				Held:      wallet.HeldBalance,
				Total:     wallet.Balance,
				Version:   wallet.Version,
			}, nil
		}

		if wallet == nil {
			if in.AvailableDelta < in.ExpectedMinAvailable || in.HeldDelta < 0 {
				return Balances{}, insufficientFunds(in.UserID, 0, 0, in)
			}
			if created {
				return Balances{}, concurrentModification(in.UserID, nil)
			}
			if err := repo.Ensure(ctx, in.UserID); err != nil {
				return Balances{}, classifyDBError(in.UserID, err)
			}
			created = true
			continue
		}

		if wallet.AvailableBalance+in.AvailableDelta < in.ExpectedMinAvailable || wallet.HeldBalance+in.HeldDelta < 0 {
			return Balances{}, insufficientFunds(in.UserID, wallet.AvailableBalance, wallet.HeldBalance, in)
		}
		return Balances{}, concurrentModification(in.UserID, nil)
	}
}

// Retry runs fn until it succeeds, fails with something other than
// CONCURRENT_MODIFICATION, or exhausts the attempt budget.
func (m *Mutator) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !pkgerrors.IsCode(lastErr, pkgerrors.CodeConcurrentModification) {
			return lastErr
		}
		if attempt == m.maxAttempts {
			break
		}
		m.metrics.IncRetry()
		if m.logg != nil {
			m.logg.Warn(m.logg.WithField(ctx, "attempt", attempt), "wallet mutation contended, retrying")
		}
		if err := m.sleep(ctx, m.backoff*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeBusy, lastErr, fmt.Sprintf("wallet busy after %d attempts", m.maxAttempts))
}

// RecordOutcome counts a finished mutation by result.
func (m *Mutator) RecordOutcome(err error) {
	switch {
	case err == nil:
		m.metrics.IncMutation(metrics.OutcomeApplied)
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds):
		m.metrics.IncMutation(metrics.OutcomeInsufficientFunds)
	case pkgerrors.IsCode(err, pkgerrors.CodeBusy):
		m.metrics.IncMutation(metrics.OutcomeBusy)
	default:
		m.metrics.IncMutation(metrics.OutcomeError)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

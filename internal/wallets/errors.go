package wallets

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelmondragon/walletcore/internal/ledger"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
)

// ErrAlreadyPosted is returned by Settle when one of its references already
// has a ledger entry. Nothing in the settlement was applied.
var ErrAlreadyPosted = ledger.ErrAlreadyRecorded

// SQLSTATEs that mean another writer got to the row first.
var retryableSQLStates = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

func insufficientFunds(userID uuid.UUID, available, held int64, in DeltaInput) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
		WithDetails(map[string]any{
			"user_id":         userID.String(),
			"available":       available,
			"held":            held,
			"available_delta": in.AvailableDelta,
			"held_delta":      in.HeldDelta,
		})
}

func concurrentModification(userID uuid.UUID, cause error) error {
	if cause == nil {
		cause = errors.New("wallet changed between guard and read")
	}
	return pkgerrors.Wrap(pkgerrors.CodeConcurrentModification, cause, "wallet modified concurrently").
		WithDetails(map[string]any{"user_id": userID.String()})
}

// classifyDBError maps lock contention onto CONCURRENT_MODIFICATION so the
// caller's retry loop picks it up; anything else is a dependency failure.
func classifyDBError(userID uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryableSQLStates[pgErr.Code]; ok {
			return concurrentModification(userID, err)
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return concurrentModification(userID, err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wallet store unavailable")
}

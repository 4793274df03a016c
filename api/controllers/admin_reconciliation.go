package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/walletcore/api/responses"
	"github.com/angelmondragon/walletcore/api/validators"
	"github.com/angelmondragon/walletcore/internal/reconciliation"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

const maxReconciliationPage = 1000

// ReconciliationScanner is satisfied by *reconciliation.Scanner.
type ReconciliationScanner interface {
	Scan(ctx context.Context, params reconciliation.ScanParams) (*reconciliation.Report, error)
}

// AdminReconciliationScan runs one page of the wallet/ledger comparison on
// demand. Page through with ?after=<nextUserId>.
func AdminReconciliationScan(scanner ReconciliationScanner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scanner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxReconciliationPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		after, err := validators.ParseQueryUUID(r, "after")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := scanner.Scan(r.Context(), reconciliation.ScanParams{Limit: limit, AfterUserID: after})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

package cron

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/walletcore/internal/reconciliation"
	"github.com/angelmondragon/walletcore/pkg/enums"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

// ErrHighSeverityDrift marks a reconciliation run that found at least one
// high severity mismatch, so the job counts as failed.
var ErrHighSeverityDrift = errors.New("high severity wallet drift detected")

type ReconciliationJobParams struct {
	Logger  *logger.Logger
	Scanner sweeper
}

type sweeper interface {
	Sweep(ctx context.Context) (*reconciliation.Summary, error)
}

func NewReconciliationJob(params ReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Scanner == nil {
		return nil, fmt.Errorf("reconciliation scanner required")
	}
	return &reconciliationJob{logg: params.Logger, scanner: params.Scanner}, nil
}

type reconciliationJob struct {
	logg    *logger.Logger
	scanner sweeper
}

func (j *reconciliationJob) Name() string { return "wallet-reconciliation" }

func (j *reconciliationJob) Run(ctx context.Context) error {
	summary, err := j.scanner.Sweep(ctx)
	if summary == nil {
		return fmt.Errorf("wallet reconciliation: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"wallets_scanned": summary.Scanned,
		"mismatches":      summary.Mismatches,
		"low":             summary.BySeverity[enums.MismatchSeverityLow],
		"medium":          summary.BySeverity[enums.MismatchSeverityMedium],
		"high":            summary.BySeverity[enums.MismatchSeverityHigh],
		"duration_ms":     summary.Duration.Milliseconds(),
	})
	j.logg.Info(logCtx, "wallet reconciliation complete")

	var errs error
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("wallet reconciliation: %w", err))
	}
	if summary.BySeverity[enums.MismatchSeverityHigh] > 0 {
		errs = multierr.Append(errs, ErrHighSeverityDrift)
	}
	return errs
}

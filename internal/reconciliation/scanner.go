package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

const (
	defaultScanLimit = 500
	maxScanLimit     = 5000
)

// Invariant violations found on a single wallet row.
const (
	ViolationNegativeAvailable = "negative_available"
	ViolationNegativeHeld      = "negative_held"
	ViolationBalanceMismatch   = "balance_not_sum"
)

// ScanParams selects one keyset page of wallets ordered by user id.
type ScanParams struct {
	Limit       int
	AfterUserID *uuid.UUID
}

// WalletMismatch describes drift between a wallet and its completed ledger
// entries. ExpectedEffect is the ledger sum and LedgerEffect the balance the
// wallet actually holds; Delta is LedgerEffect - ExpectedEffect.
type WalletMismatch struct {
	UserID         uuid.UUID              `json:"userId"`
	ExpectedEffect int64                  `json:"expectedEffect"`
	LedgerEffect   int64                  `json:"ledgerEffect"`
	Delta          int64                  `json:"delta"`
	AvailableDelta int64                  `json:"availableDelta"`
	HeldDelta      int64                  `json:"heldDelta"`
	Entries        int64                  `json:"entries"`
	Violations     []string               `json:"violations,omitempty"`
	Severity       enums.MismatchSeverity `json:"severity"`
}

// Report is the outcome of one Scan page. NextUserID is set when more
// wallets may follow.
type Report struct {
	Scanned    int              `json:"scanned"`
	Mismatches []WalletMismatch `json:"mismatches"`
	NextUserID *uuid.UUID       `json:"nextUserId,omitempty"`
}

// Summary aggregates a full Sweep.
type Summary struct {
	Scanned    int                            `json:"scanned"`
	Mismatches int                            `json:"mismatches"`
	BySeverity map[enums.MismatchSeverity]int `json:"bySeverity"`
	Duration   time.Duration                  `json:"duration"`
}

type scanMetrics interface {
	IncMismatch(severity string)
	SetScanned(n int)
}

// ScannerParams wires the scanner.
type ScannerParams struct {
	Repository Repository
	Config     config.ReconciliationConfig
	Logger     *logger.Logger
	Metrics    scanMetrics
}

// Scanner compares wallet balances against the ledger. It is read-only.
type Scanner struct {
	repo    Repository
	low     int64
	medium  int64
	batch   int
	logg    *logger.Logger
	metrics scanMetrics
	now     func() time.Time
}

func NewScanner(params ScannerParams) (*Scanner, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reconciliation repository required")
	}
	cfg := params.Config
	if cfg.LowThreshold <= 0 || cfg.MediumThreshold <= cfg.LowThreshold {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "severity thresholds must be positive and increasing")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultScanLimit
	}
	return &Scanner{
		repo:    params.Repository,
		low:     cfg.LowThreshold,
		medium:  cfg.MediumThreshold,
		batch:   batch,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

// Scan checks one page of wallets.
func (s *Scanner) Scan(ctx context.Context, params ScanParams) (*Report, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = s.batch
	}
	if limit > maxScanLimit {
		limit = maxScanLimit
	}
	after := uuid.Nil
	if params.AfterUserID != nil {
		after = *params.AfterUserID
	}

	rows, err := s.repo.ListWalletTotals(ctx, after, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet totals")
	}

	report := &Report{Scanned: len(rows), Mismatches: []WalletMismatch{}}
	for _, row := range rows {
		if mismatch, ok := s.compare(row); ok {
			report.Mismatches = append(report.Mismatches, mismatch)
		}
	}
	if len(rows) == limit {
		last := rows[len(rows)-1].UserID
		report.NextUserID = &last
	}
	return report, nil
}

// Sweep pages through every wallet, logging and counting each mismatch.
func (s *Scanner) Sweep(ctx context.Context) (*Summary, error) {
	start := s.now()
	summary := &Summary{BySeverity: map[enums.MismatchSeverity]int{}}
	var after *uuid.UUID
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		report, err := s.Scan(ctx, ScanParams{Limit: s.batch, AfterUserID: after})
		if err != nil {
			return summary, err
		}
		summary.Scanned += report.Scanned
		for _, mismatch := range report.Mismatches {
			summary.Mismatches++
			summary.BySeverity[mismatch.Severity]++
			s.report(ctx, mismatch)
		}
		if report.NextUserID == nil {
			break
		}
		after = report.NextUserID
	}
	summary.Duration = s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.SetScanned(summary.Scanned)
	}
	return summary, nil
}

func (s *Scanner) compare(row walletTotals) (WalletMismatch, bool) {
	expected := row.WalletEffect + row.HeldEffect
	mismatch := WalletMismatch{
		UserID:         row.UserID,
		ExpectedEffect: expected,
		LedgerEffect:   row.Balance,
		Delta:          row.Balance - expected,
		AvailableDelta: row.AvailableBalance - row.WalletEffect,
		HeldDelta:      row.HeldBalance - row.HeldEffect,
		Entries:        row.Entries,
	}
	if row.AvailableBalance < 0 {
		mismatch.Violations = append(mismatch.Violations, ViolationNegativeAvailable)
	}
	if row.HeldBalance < 0 {
		mismatch.Violations = append(mismatch.Violations, ViolationNegativeHeld)
	}
	if row.Balance != row.AvailableBalance+row.HeldBalance {
		mismatch.Violations = append(mismatch.Violations, ViolationBalanceMismatch)
	}

	drift := maxAbs(mismatch.Delta, mismatch.AvailableDelta, mismatch.HeldDelta)
	if drift == 0 && len(mismatch.Violations) == 0 {
		return WalletMismatch{}, false
	}
	mismatch.Severity = s.severity(drift)
	if len(mismatch.Violations) > 0 {
		mismatch.Severity = enums.MismatchSeverityHigh
	}
	return mismatch, true
}

func (s *Scanner) severity(drift int64) enums.MismatchSeverity {
	switch {
	case drift < s.low:
		return enums.MismatchSeverityLow
	case drift < s.medium:
		return enums.MismatchSeverityMedium
	default:
		return enums.MismatchSeverityHigh
	}
}

func (s *Scanner) report(ctx context.Context, mismatch WalletMismatch) {
	if s.metrics != nil {
		s.metrics.IncMismatch(string(mismatch.Severity))
	}
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":         mismatch.UserID.String(),
		"expected_effect": mismatch.ExpectedEffect,
		"ledger_effect":   mismatch.LedgerEffect,
		"delta":           mismatch.Delta,
		"available_delta": mismatch.AvailableDelta,
		"held_delta":      mismatch.HeldDelta,
		"severity":        string(mismatch.Severity),
		"violations":      mismatch.Violations,
	})
	if mismatch.Severity == enums.MismatchSeverityHigh {
		s.logg.Error(logCtx, "wallet ledger mismatch", nil)
		return
	}
	s.logg.Warn(logCtx, "wallet ledger mismatch")
}

func maxAbs(values ...int64) int64 {
	var out int64
	for _, v := range values {
		if v < 0 {
			v = -v
		}
		if v > out {
			out = v
		}
	}
	return out
}

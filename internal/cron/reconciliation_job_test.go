package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/walletcore/internal/reconciliation"
	"github.com/angelmondragon/walletcore/pkg/enums"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

type fakeSweeper struct {
	summary *reconciliation.Summary
	err     error
	calls   int
}

func (f *fakeSweeper) Sweep(context.Context) (*reconciliation.Summary, error) {
	f.calls++
	return f.summary, f.err
}

func newReconciliationJob(t *testing.T, scanner sweeper) Job {
	t.Helper()
	job, err := NewReconciliationJob(ReconciliationJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Scanner: scanner,
	})
	if err != nil {
		t.Fatalf("NewReconciliationJob: %v", err)
	}
	return job
}

func TestReconciliationJobCleanSweep(t *testing.T) {
	scanner := &fakeSweeper{summary: &reconciliation.Summary{
		Scanned:    12,
		Mismatches: 1,
		BySeverity: map[enums.MismatchSeverity]int{enums.MismatchSeverityLow: 1},
	}}
	job := newReconciliationJob(t, scanner)
	if job.Name() != "wallet-reconciliation" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scanner.calls != 1 {
		t.Fatalf("expected one sweep, got %d", scanner.calls)
	}
}

func TestReconciliationJobFailsOnHighSeverity(t *testing.T) {
	scanner := &fakeSweeper{summary: &reconciliation.Summary{
		Scanned:    3,
		Mismatches: 1,
		BySeverity: map[enums.MismatchSeverity]int{enums.MismatchSeverityHigh: 1},
	}}
	err := newReconciliationJob(t, scanner).Run(context.Background())
	if !errors.Is(err, ErrHighSeverityDrift) {
		t.Fatalf("expected high severity error, got %v", err)
	}
}

func TestReconciliationJobCombinesErrors(t *testing.T) {
	boom := errors.New("db gone")
	scanner := &fakeSweeper{
		summary: &reconciliation.Summary{BySeverity: map[enums.MismatchSeverity]int{enums.MismatchSeverityHigh: 2}},
		err:     boom,
	}
	err := newReconciliationJob(t, scanner).Run(context.Background())
	if !errors.Is(err, boom) || !errors.Is(err, ErrHighSeverityDrift) {
		t.Fatalf("expected both errors, got %v", err)
	}

	scanner = &fakeSweeper{err: boom}
	if err := newReconciliationJob(t, scanner).Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected sweep error, got %v", err)
	}
}

type fakeExpirer struct {
	n   int64
	err error
}

func (f fakeExpirer) ExpireLapsed(context.Context) (int64, error) { return f.n, f.err }

func TestPremiumExpiryJob(t *testing.T) {
	job, err := NewPremiumExpiryJob(PremiumExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Users:  fakeExpirer{n: 4},
	})
	if err != nil {
		t.Fatalf("NewPremiumExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ = NewPremiumExpiryJob(PremiumExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Users:  fakeExpirer{err: errors.New("boom")},
	})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewPremiumExpiryJob(PremiumExpiryJobParams{}); err == nil {
		t.Fatal("expected constructor error")
	}
}

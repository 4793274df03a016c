package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/logger"
)

type recordingPruner struct {
	cutoffs  []time.Time
	terminal int
	err      error
}

func (p *recordingPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	p.terminal = minAttemptCount
	return 7, p.err
}

type inlineTx struct{}

func (inlineTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func retentionJob(t *testing.T, pruner *recordingPruner, retention time.Duration) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         inlineTx{},
		Repository: pruner,
		Retention:  retention,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionJobUsesConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	pruner := &recordingPruner{}
	job := retentionJob(t, pruner, 72*time.Hour)
	job.clock = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pruner.cutoffs) != 1 || !pruner.cutoffs[0].Equal(now.Add(-72*time.Hour)) {
		t.Fatalf("unexpected cutoffs %v", pruner.cutoffs)
	}
	if pruner.terminal != defaultTerminalAttempts {
		t.Fatalf("expected terminal attempts %d, got %d", defaultTerminalAttempts, pruner.terminal)
	}
}

func TestOutboxRetentionJobDefaultsAndErrors(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pruner := &recordingPruner{err: errors.New("boom")}
	job := retentionJob(t, pruner, 0)
	job.clock = func() time.Time { return now }

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !pruner.cutoffs[0].Equal(now.Add(-defaultOutboxRetention)) {
		t.Fatalf("expected default window, got cutoff %s", pruner.cutoffs[0])
	}
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{}); err == nil {
		t.Fatal("expected missing dependencies to fail")
	}
}

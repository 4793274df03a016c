package reconciliation

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/internal/testdb"
	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

var testThresholds = config.ReconciliationConfig{BatchSize: 2, LowThreshold: 10000, MediumThreshold: 500000}

type recordingMetrics struct {
	mismatches map[string]int
	scanned    int
}

func (m *recordingMetrics) IncMismatch(severity string) {
	if m.mismatches == nil {
		m.mismatches = map[string]int{}
	}
	m.mismatches[severity]++
}

func (m *recordingMetrics) SetScanned(n int) { m.scanned = n }

func seedWallet(t *testing.T, conn *gorm.DB, userID uuid.UUID, available, held, balance int64) {
	t.Helper()
	require.NoError(t, conn.Create(&models.Wallet{
		ID:               uuid.New(),
		UserID:           userID,
		AvailableBalance: available,
		HeldBalance:      held,
		Balance:          balance,
	}).Error)
}

func seedEntry(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.LedgerEntryStatus, walletEffect, heldEffect int64) {
	t.Helper()
	amount := walletEffect
	if amount < 0 {
		amount = -amount
	}
	require.NoError(t, conn.Create(&models.LedgerEntry{
		ID:           uuid.New(),
		UserID:       userID,
		EntryKind:    enums.LedgerEntryAdjustment,
		Amount:       amount,
		WalletEffect: walletEffect,
		HeldEffect:   heldEffect,
		Status:       status,
		Reference:    fmt.Sprintf("seed:%s", uuid.NewString()),
	}).Error)
}

func newScanner(t *testing.T, conn *gorm.DB, metrics *recordingMetrics, logg *logger.Logger) *Scanner {
	t.Helper()
	params := ScannerParams{
		Repository: NewRepository(conn),
		Config:     testThresholds,
		Logger:     logg,
	}
	if metrics != nil {
		params.Metrics = metrics
	}
	scanner, err := NewScanner(params)
	require.NoError(t, err)
	return scanner
}

func TestScan_ConsistentWalletsReportNothing(t *testing.T) {
	conn := testdb.Open(t)
	user := uuid.New()
	seedWallet(t, conn, user, 4000, 6000, 10000)
	seedEntry(t, conn, user, enums.LedgerEntryStatusCompleted, 10000, 0)
	seedEntry(t, conn, user, enums.LedgerEntryStatusCompleted, -6000, 6000)
	seedEntry(t, conn, user, enums.LedgerEntryStatusFailed, 99999, 0)

	report, err := newScanner(t, conn, nil, nil).Scan(context.Background(), ScanParams{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Empty(t, report.Mismatches)
	assert.Nil(t, report.NextUserID)
}

func TestScan_ReportsDriftWithSeverity(t *testing.T) {
	conn := testdb.Open(t)
	low, medium, high := uuid.New(), uuid.New(), uuid.New()

	seedWallet(t, conn, low, 5050, 0, 5050)
	seedEntry(t, conn, low, enums.LedgerEntryStatusCompleted, 5000, 0)

	seedWallet(t, conn, medium, 0, 20000, 20000)
	seedEntry(t, conn, medium, enums.LedgerEntryStatusCompleted, 0, 0)

	seedWallet(t, conn, high, 600000, 0, 600000)

	report, err := newScanner(t, conn, nil, nil).Scan(context.Background(), ScanParams{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	require.Len(t, report.Mismatches, 3)

	byUser := map[uuid.UUID]WalletMismatch{}
	for _, m := range report.Mismatches {
		byUser[m.UserID] = m
	}

	got := byUser[low]
	assert.EqualValues(t, 5000, got.ExpectedEffect)
	assert.EqualValues(t, 5050, got.LedgerEffect)
	assert.EqualValues(t, 50, got.Delta)
	assert.EqualValues(t, 50, got.AvailableDelta)
	assert.Equal(t, enums.MismatchSeverityLow, got.Severity)

	got = byUser[medium]
	assert.EqualValues(t, 20000, got.HeldDelta)
	assert.Equal(t, enums.MismatchSeverityMedium, got.Severity)

	got = byUser[high]
	assert.EqualValues(t, 0, got.Entries)
	assert.Equal(t, enums.MismatchSeverityHigh, got.Severity)
}

func TestScan_ComponentDriftCaughtWhenTotalsAgree(t *testing.T) {
	conn := testdb.Open(t)
	user := uuid.New()
	seedWallet(t, conn, user, 10000, 0, 10000)
	seedEntry(t, conn, user, enums.LedgerEntryStatusCompleted, 4000, 6000)

	report, err := newScanner(t, conn, nil, nil).Scan(context.Background(), ScanParams{})
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	m := report.Mismatches[0]
	assert.Zero(t, m.Delta)
	assert.EqualValues(t, 6000, m.AvailableDelta)
	assert.EqualValues(t, -6000, m.HeldDelta)
	assert.Equal(t, enums.MismatchSeverityLow, m.Severity)
}

func TestScan_BrokenStoredBalanceIsHigh(t *testing.T) {
	conn := testdb.Open(t)
	user := uuid.New()
	seedWallet(t, conn, user, 100, 0, 150)
	seedEntry(t, conn, user, enums.LedgerEntryStatusCompleted, 100, 0)

	report, err := newScanner(t, conn, nil, nil).Scan(context.Background(), ScanParams{})
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, []string{ViolationBalanceMismatch}, report.Mismatches[0].Violations)
	assert.Equal(t, enums.MismatchSeverityHigh, report.Mismatches[0].Severity)
}

func TestScan_KeysetPaging(t *testing.T) {
	conn := testdb.Open(t)
	users := make([]uuid.UUID, 5)
	for i := range users {
		users[i] = uuid.New()
		seedWallet(t, conn, users[i], 0, 0, 0)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })

	scanner := newScanner(t, conn, nil, nil)
	ctx := context.Background()

	first, err := scanner.Scan(ctx, ScanParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Scanned)
	require.NotNil(t, first.NextUserID)
	assert.Equal(t, users[1], *first.NextUserID)

	second, err := scanner.Scan(ctx, ScanParams{Limit: 2, AfterUserID: first.NextUserID})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Scanned)
	require.NotNil(t, second.NextUserID)

	last, err := scanner.Scan(ctx, ScanParams{Limit: 2, AfterUserID: second.NextUserID})
	require.NoError(t, err)
	assert.Equal(t, 1, last.Scanned)
	assert.Nil(t, last.NextUserID)
}

func TestSweep_LogsAndCountsEveryMismatch(t *testing.T) {
	conn := testdb.Open(t)
	for i := 0; i < 3; i++ {
		seedWallet(t, conn, uuid.New(), 0, 0, 0)
	}
	drifted := uuid.New()
	seedWallet(t, conn, drifted, 700000, 0, 700000)
	warned := uuid.New()
	seedWallet(t, conn, warned, 10, 0, 10)

	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("info"), Output: buf})
	metrics := &recordingMetrics{}

	summary, err := newScanner(t, conn, metrics, logg).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Scanned)
	assert.Equal(t, 2, summary.Mismatches)
	assert.Equal(t, 1, summary.BySeverity[enums.MismatchSeverityHigh])
	assert.Equal(t, 1, summary.BySeverity[enums.MismatchSeverityLow])
	assert.Equal(t, 5, metrics.scanned)
	assert.Equal(t, map[string]int{"high": 1, "low": 1}, metrics.mismatches)

	out := buf.String()
	assert.Contains(t, out, drifted.String())
	assert.Contains(t, out, warned.String())
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestScan_IsReadOnly(t *testing.T) {
	conn := testdb.Open(t)
	user := uuid.New()
	seedWallet(t, conn, user, 300, 0, 300)

	_, err := newScanner(t, conn, nil, nil).Sweep(context.Background())
	require.NoError(t, err)

	var w models.Wallet
	require.NoError(t, conn.Where("user_id = ?", user).First(&w).Error)
	assert.EqualValues(t, 300, w.AvailableBalance)
	assert.EqualValues(t, 0, w.Version)
}

func TestNewScanner_RejectsBadThresholds(t *testing.T) {
	_, err := NewScanner(ScannerParams{Repository: NewRepository(nil), Config: config.ReconciliationConfig{LowThreshold: 10, MediumThreshold: 5}})
	require.Error(t, err)
	_, err = NewScanner(ScannerParams{Config: testThresholds})
	require.Error(t, err)
}

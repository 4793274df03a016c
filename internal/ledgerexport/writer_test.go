package ledgerexport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pkgbigquery "github.com/angelmondragon/walletcore/pkg/bigquery"
)

type scriptedInserter struct {
	results []error
	tables  []string
}

func (s *scriptedInserter) InsertRows(_ context.Context, table string, rows []any) error {
	s.tables = append(s.tables, table)
	if len(rows) != 1 {
		return errors.New("expected a single row")
	}
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

func testWriter(t *testing.T, results ...error) (*Writer, *scriptedInserter) {
	t.Helper()
	w, err := NewWriter(&pkgbigquery.Client{}, WriterConfig{
		Table: "wallet_ledger_entries",
		Retry: RetryPolicy{InitialBackoff: 1, MaximumBackoff: 1},
	})
	require.NoError(t, err)
	fake := &scriptedInserter{results: results}
	w.client = fake
	return w, fake
}

func TestNewWriterValidation(t *testing.T) {
	_, err := NewWriter(nil, WriterConfig{Table: "ledger"})
	assert.Error(t, err)
	_, err = NewWriter(&pkgbigquery.Client{}, WriterConfig{Table: " "})
	assert.Error(t, err)

	w, err := NewWriter(&pkgbigquery.Client{}, WriterConfig{Table: "ledger"})
	require.NoError(t, err)
	assert.Equal(t, defaultRetry, w.retry)
}

func TestWriterRetriesTransientFailures(t *testing.T) {
	w, fake := testWriter(t, &googleapi.Error{Code: http.StatusServiceUnavailable}, nil)

	require.NoError(t, w.Insert(context.Background(), Row{EventID: "1"}))
	assert.Equal(t, []string{"wallet_ledger_entries", "wallet_ledger_entries"}, fake.tables)
}

func TestWriterStopsOnPermanentFailure(t *testing.T) {
	w, fake := testWriter(t, &googleapi.Error{Code: http.StatusBadRequest})

	assert.Error(t, w.Insert(context.Background(), Row{EventID: "1"}))
	assert.Len(t, fake.tables, 1)
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	busy := &googleapi.Error{Code: http.StatusTooManyRequests}
	w, fake := testWriter(t, busy, busy, busy, busy)

	err := w.Insert(context.Background(), Row{EventID: "1"})
	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, fake.tables, defaultRetry.MaxAttempts)
}

func TestWriterStopsWhenContextEnds(t *testing.T) {
	w, fake := testWriter(t, &googleapi.Error{Code: http.StatusBadGateway})
	w.retry.InitialBackoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.Insert(ctx, Row{EventID: "1"}), context.Canceled)
	assert.Len(t, fake.tables, 1)
}

func TestTransientClassification(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "try later")
	invalid := status.Error(codes.InvalidArgument, "bad row")

	assert.True(t, transient(unavailable))
	assert.False(t, transient(invalid))
	assert.False(t, transient(errors.New("plain")))
	assert.False(t, transient(cbigquery.PutMultiError{}))
	assert.True(t, transient(cbigquery.PutMultiError{{Errors: []error{unavailable}}}))
	assert.False(t, transient(cbigquery.PutMultiError{{Errors: []error{unavailable, invalid}}}))
}

func TestRowSaveUsesEntryIDAsInsertID(t *testing.T) {
	row := &Row{EventID: "evt-1", EntryID: "entry-1", UserID: "user-1", AmountKobo: 5400}
	values, insertID, err := row.Save()
	require.NoError(t, err)
	assert.Equal(t, "entry-1", insertID)
	assert.Equal(t, int64(5400), values["amount_kobo"])
}

package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsOnlyCanonicalValues(t *testing.T) {
	kind, err := ParseLedgerEntryKind("tip_sent")
	require.NoError(t, err)
	assert.Equal(t, LedgerEntryTipSent, kind)

	_, err = ParseLedgerEntryKind("TIP_SENT")
	assert.EqualError(t, err, `invalid ledger entry kind "TIP_SENT"`)

	_, err = ParseOutboxEventType("")
	assert.Error(t, err)
}

func TestIsValid(t *testing.T) {
	assert.True(t, OutboxDLQReasonMaxAttempts.IsValid())
	assert.False(t, OutboxDLQErrorReason("gave_up").IsValid())
	assert.True(t, AggregateWallet.IsValid())
	assert.False(t, UserRole("root").IsValid())
}

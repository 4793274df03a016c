package enums

import "slices"

// LedgerEntryStatus maps to the ledger_entry_status_enum enum in Postgres.
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending   LedgerEntryStatus = "pending"
	LedgerEntryStatusCompleted LedgerEntryStatus = "completed"
	LedgerEntryStatusFailed    LedgerEntryStatus = "failed"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusCompleted,
	LedgerEntryStatusFailed,
}

// IsValid reports whether the value matches a known ledger entry status.
func (l LedgerEntryStatus) IsValid() bool {
	return slices.Contains(validLedgerEntryStatuses, l)
}

// ParseLedgerEntryStatus converts raw input into LedgerEntryStatus.
func ParseLedgerEntryStatus(value string) (LedgerEntryStatus, error) {
	return parseEnum(value, validLedgerEntryStatuses, "ledger entry status")
}

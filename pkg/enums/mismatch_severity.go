package enums

import "slices"

// MismatchSeverity grades the size of a wallet/ledger drift.
type MismatchSeverity string

const (
	MismatchSeverityLow    MismatchSeverity = "low"
	MismatchSeverityMedium MismatchSeverity = "medium"
	MismatchSeverityHigh   MismatchSeverity = "high"
)

var validMismatchSeverities = []MismatchSeverity{
	MismatchSeverityLow,
	MismatchSeverityMedium,
	MismatchSeverityHigh,
}

// IsValid reports whether the value matches a known mismatch severity.
func (m MismatchSeverity) IsValid() bool {
	return slices.Contains(validMismatchSeverities, m)
}

// ParseMismatchSeverity converts raw input into MismatchSeverity.
func ParseMismatchSeverity(value string) (MismatchSeverity, error) {
	return parseEnum(value, validMismatchSeverities, "mismatch severity")
}

package enums

import "slices"

// TransactionStatus tracks an escrow transaction from hold to settlement.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusFailed,
}

// IsValid reports whether the value matches a known transaction status.
func (t TransactionStatus) IsValid() bool {
	return slices.Contains(validTransactionStatuses, t)
}

// ParseTransactionStatus converts raw input into TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	return parseEnum(value, validTransactionStatuses, "transaction status")
}

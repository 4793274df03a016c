package enums

import "slices"

// LedgerEntryKind maps to the ledger_entry_kind_enum enum in Postgres.
type LedgerEntryKind string

const (
	LedgerEntryAdBudgetLocked   LedgerEntryKind = "ad_budget_locked"
	LedgerEntryAdBudgetRefunded LedgerEntryKind = "ad_budget_refunded"
	LedgerEntryAdBudgetSpent    LedgerEntryKind = "ad_budget_spent"
	LedgerEntryEscrowHold       LedgerEntryKind = "escrow_hold"
	LedgerEntryEscrowRelease    LedgerEntryKind = "escrow_release"
	LedgerEntryEscrowSettled    LedgerEntryKind = "escrow_settled"
	LedgerEntryEscrowRefund     LedgerEntryKind = "escrow_refund"
	LedgerEntryPlatformFee      LedgerEntryKind = "platform_fee"
	LedgerEntryTipSent          LedgerEntryKind = "tip_sent"
	LedgerEntryTipReceived      LedgerEntryKind = "tip_received"
	LedgerEntryPremiumCharge    LedgerEntryKind = "premium_charge"
	LedgerEntryWalletFunding    LedgerEntryKind = "wallet_funding"
	LedgerEntryAdjustment       LedgerEntryKind = "adjustment"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryAdBudgetLocked,
	LedgerEntryAdBudgetRefunded,
	LedgerEntryAdBudgetSpent,
	LedgerEntryEscrowHold,
	LedgerEntryEscrowRelease,
	LedgerEntryEscrowSettled,
	LedgerEntryEscrowRefund,
	LedgerEntryPlatformFee,
	LedgerEntryTipSent,
	LedgerEntryTipReceived,
	LedgerEntryPremiumCharge,
	LedgerEntryWalletFunding,
	LedgerEntryAdjustment,
}

// IsValid reports whether the value matches a known ledger entry kind.
func (l LedgerEntryKind) IsValid() bool {
	return slices.Contains(validLedgerEntryKinds, l)
}

// ParseLedgerEntryKind converts raw input into LedgerEntryKind.
func ParseLedgerEntryKind(value string) (LedgerEntryKind, error) {
	return parseEnum(value, validLedgerEntryKinds, "ledger entry kind")
}

package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateEscrowTransaction OutboxAggregateType = "escrow_transaction"
	AggregateLedgerEntry       OutboxAggregateType = "ledger_entry"
	AggregateAdCampaign        OutboxAggregateType = "ad_campaign"
	AggregateUserProfile       OutboxAggregateType = "user_profile"
	AggregateWallet            OutboxAggregateType = "wallet"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateEscrowTransaction,
	AggregateLedgerEntry,
	AggregateAdCampaign,
	AggregateUserProfile,
	AggregateWallet,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseEnum(value, validAggregateTypes, "aggregate type")
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventEscrowFundsHeld         OutboxEventType = "escrow_funds_held"
	EventEscrowShipped           OutboxEventType = "escrow_shipped"
	EventEscrowReleased          OutboxEventType = "escrow_released"
	EventEscrowRefunded          OutboxEventType = "escrow_refunded"
	EventLedgerEntryRecorded     OutboxEventType = "ledger_entry_recorded"
	EventAdCampaignFunded        OutboxEventType = "ad_campaign_funded"
	EventAdCampaignFundingFailed OutboxEventType = "ad_campaign_funding_failed"
	EventPremiumActivated        OutboxEventType = "premium_activated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventEscrowFundsHeld,
	EventEscrowShipped,
	EventEscrowReleased,
	EventEscrowRefunded,
	EventLedgerEntryRecorded,
	EventAdCampaignFunded,
	EventAdCampaignFundingFailed,
	EventPremiumActivated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseEnum(value, validOutboxEventTypes, "event type")
}

// OutboxDLQErrorReason explains why an outbox event was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnknownEvent OutboxDLQErrorReason = "unknown_event"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUnknownEvent,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	return slices.Contains(validOutboxDLQErrorReasons, r)
}

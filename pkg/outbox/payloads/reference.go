package payloads

// Referenced is implemented by payloads tied to a wallet reference. The
// publisher copies the reference into message attributes so consumers can
// dedupe without decoding the body.
type Referenced interface {
	EventReference() string
}

func (e EscrowFundsHeldEvent) EventReference() string         { return e.Reference }
func (e EscrowReleasedEvent) EventReference() string          { return e.Reference }
func (e EscrowRefundedEvent) EventReference() string          { return e.Reference }
func (e LedgerEntryRecordedEvent) EventReference() string     { return e.Reference }
func (e AdCampaignFundedEvent) EventReference() string        { return e.Reference }
func (e AdCampaignFundingFailedEvent) EventReference() string { return e.Reference }
func (e PremiumActivatedEvent) EventReference() string        { return e.Reference }

package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/pkg/enums"
)

// EscrowFundsHeldEvent is emitted when a buyer's funds move into escrow.
type EscrowFundsHeldEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ListingID     uuid.UUID `json:"listing_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	Amount        int64     `json:"amount"`
	Reference     string    `json:"reference"`
}

type EscrowShippedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ListingID     uuid.UUID `json:"listing_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	ShippedAt     time.Time `json:"shipped_at"`
}

// EscrowReleasedEvent is emitted once per transaction when the seller is paid.
type EscrowReleasedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ListingID     uuid.UUID `json:"listing_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	Amount        int64     `json:"amount"`
	PlatformFee   int64     `json:"platform_fee"`
	NetAmount     int64     `json:"net_amount"`
	Reference     string    `json:"reference"`
	ReleasedBy    uuid.UUID `json:"released_by"`
}

type EscrowRefundedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ListingID     uuid.UUID `json:"listing_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	Amount        int64     `json:"amount"`
	Reference     string    `json:"reference"`
	RefundedBy    uuid.UUID `json:"refunded_by"`
}

// LedgerEntryRecordedEvent mirrors a ledger row for the warehouse export.
type LedgerEntryRecordedEvent struct {
	EntryID          uuid.UUID               `json:"entry_id"`
	UserID           uuid.UUID               `json:"user_id"`
	EntryKind        enums.LedgerEntryKind   `json:"entry_kind"`
	Status           enums.LedgerEntryStatus `json:"status"`
	Amount           int64                   `json:"amount"`
	WalletEffect     int64                   `json:"wallet_effect"`
	HeldEffect       int64                   `json:"held_effect"`
	Reference        string                  `json:"reference"`
	CounterpartyID   *uuid.UUID              `json:"counterparty_id,omitempty"`
	AvailableBalance int64                   `json:"available_balance"`
	HeldBalance      int64                   `json:"held_balance"`
	Balance          int64                   `json:"balance"`
	CreatedAt        time.Time               `json:"created_at"`
}

type AdCampaignFundedEvent struct {
	CampaignID   uuid.UUID `json:"campaign_id"`
	AdvertiserID uuid.UUID `json:"advertiser_id"`
	Budget       int64     `json:"budget"`
	Reference    string    `json:"reference"`
}

// AdCampaignFundingFailedEvent records a budget lock that was compensated.
type AdCampaignFundingFailedEvent struct {
	AdvertiserID uuid.UUID `json:"advertiser_id"`
	Budget       int64     `json:"budget"`
	Reference    string    `json:"reference"`
	Reason       string    `json:"reason"`
	Compensated  bool      `json:"compensated"`
}

type PremiumActivatedEvent struct {
	UserID           uuid.UUID          `json:"user_id"`
	Plan             enums.PremiumPlan  `json:"plan"`
	Method           enums.ChargeMethod `json:"method"`
	Amount           int64              `json:"amount"`
	PremiumExpiresAt time.Time          `json:"premium_expires_at"`
	Reference        string             `json:"reference"`
}

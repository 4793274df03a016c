package escrow

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
)

// Actor is the authenticated caller of an escrow operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// Outcome distinguishes a fresh transition from an idempotent replay.
type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

// Result is returned by every escrow operation. AlreadyProcessed is a
// success, not an error.
type Result struct {
	Listing           *models.Listing           `json:"listing"`
	Transaction       *models.EscrowTransaction `json:"transaction,omitempty"`
	Outcome           Outcome                   `json:"outcome"`
	LedgerWriteFailed bool                      `json:"-"`
}

type CreateListingInput struct {
	SellerID uuid.UUID
	Title    string
	Price    int64
}

type BuyInput struct {
	ListingID uuid.UUID
	BuyerID   uuid.UUID
	Reference string
}

type ShipInput struct {
	ListingID uuid.UUID
	SellerID  uuid.UUID
}

type ReleaseInput struct {
	ListingID uuid.UUID
	Actor     Actor
}

// RefundInput names the listing and, optionally, the purchase being
// refunded. With TransactionID set a retry can never refund a later
// purchase of the same listing.
type RefundInput struct {
	ListingID     uuid.UUID
	TransactionID *uuid.UUID
	Actor         Actor
}

package controllers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/internal/escrow"
	"github.com/angelmondragon/walletcore/internal/ledger"
	"github.com/angelmondragon/walletcore/internal/payments"
	"github.com/angelmondragon/walletcore/internal/wallets"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/money"
)

type listingResponse struct {
	ID                uuid.UUID  `json:"id"`
	SellerID          uuid.UUID  `json:"seller_id"`
	Title             string     `json:"title"`
	Price             int64      `json:"price"`
	PriceDisplay      string     `json:"price_display"`
	Status            string     `json:"status"`
	BuyerID           *uuid.UUID `json:"buyer_id,omitempty"`
	TransactionID     *uuid.UUID `json:"transaction_id,omitempty"`
	FulfillmentStatus string     `json:"fulfillment_status"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty"`
	BuyerConfirmedAt  *time.Time `json:"buyer_confirmed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type transactionResponse struct {
	ID          uuid.UUID  `json:"id"`
	ListingID   uuid.UUID  `json:"listing_id"`
	BuyerID     uuid.UUID  `json:"buyer_id"`
	SellerID    uuid.UUID  `json:"seller_id"`
	Amount      int64      `json:"amount"`
	PlatformFee int64      `json:"platform_fee"`
	NetAmount   int64      `json:"net_amount"`
	Status      string     `json:"status"`
	Reference   string     `json:"reference"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type escrowResultResponse struct {
	Listing     *listingResponse     `json:"listing"`
	Transaction *transactionResponse `json:"transaction,omitempty"`
	Outcome     string               `json:"outcome"`
}

type ledgerEntryResponse struct {
	ID               uuid.UUID       `json:"id"`
	EntryKind        string          `json:"entry_kind"`
	Status           string          `json:"status"`
	Amount           int64           `json:"amount"`
	WalletEffect     int64           `json:"wallet_effect"`
	HeldEffect       int64           `json:"held_effect"`
	Reference        string          `json:"reference"`
	CounterpartyID   *uuid.UUID      `json:"counterparty_id,omitempty"`
	AvailableBalance int64           `json:"available_balance"`
	HeldBalance      int64           `json:"held_balance"`
	Balance          int64           `json:"balance"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type ledgerPageResponse struct {
	Items  []ledgerEntryResponse `json:"items"`
	Cursor string                `json:"cursor,omitempty"`
}

type campaignResponse struct {
	ID           uuid.UUID `json:"id"`
	AdvertiserID uuid.UUID `json:"advertiser_id"`
	Title        string    `json:"title"`
	Placements   []string  `json:"placements"`
	Budget       int64     `json:"budget"`
	Status       string    `json:"status"`
	Reference    string    `json:"reference"`
	CreatedAt    time.Time `json:"created_at"`
}

type adBudgetResponse struct {
	Campaign  *campaignResponse `json:"campaign"`
	Reference string            `json:"reference"`
	Balances  wallets.Balances  `json:"balances"`
}

func newListingResponse(l *models.Listing) *listingResponse {
	if l == nil {
		return nil
	}
	return &listingResponse{
		ID:                l.ID,
		SellerID:          l.SellerID,
		Title:             l.Title,
		Price:             l.Price,
		PriceDisplay:      money.FormatNaira(l.Price),
		Status:            string(l.Status),
		BuyerID:           l.BuyerID,
		TransactionID:     l.TransactionID,
		FulfillmentStatus: string(l.FulfillmentStatus),
		ShippedAt:         l.ShippedAt,
		BuyerConfirmedAt:  l.BuyerConfirmedAt,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func newTransactionResponse(t *models.EscrowTransaction) *transactionResponse {
	if t == nil {
		return nil
	}
	return &transactionResponse{
		ID:          t.ID,
		ListingID:   t.ListingID,
		BuyerID:     t.SenderID,
		SellerID:    t.ReceiverID,
		Amount:      t.Amount,
		PlatformFee: t.PlatformFee,
		NetAmount:   t.NetAmount,
		Status:      string(t.Status),
		Reference:   t.Reference,
		CompletedAt: t.CompletedAt,
		FailedAt:    t.FailedAt,
		CreatedAt:   t.CreatedAt,
	}
}

func newEscrowResultResponse(res *escrow.Result) *escrowResultResponse {
	if res == nil {
		return nil
	}
	return &escrowResultResponse{
		Listing:     newListingResponse(res.Listing),
		Transaction: newTransactionResponse(res.Transaction),
		Outcome:     string(res.Outcome),
	}
}

func newLedgerEntryResponse(e models.LedgerEntry) ledgerEntryResponse {
	resp := ledgerEntryResponse{
		ID:               e.ID,
		EntryKind:        string(e.EntryKind),
		Status:           string(e.Status),
		Amount:           e.Amount,
		WalletEffect:     e.WalletEffect,
		HeldEffect:       e.HeldEffect,
		Reference:        e.Reference,
		CounterpartyID:   e.CounterpartyID,
		AvailableBalance: e.AvailableBalance,
		HeldBalance:      e.HeldBalance,
		Balance:          e.Balance,
		CreatedAt:        e.CreatedAt,
	}
	if len(e.Metadata) > 0 {
		resp.Metadata = e.Metadata
	}
	return resp
}

func newLedgerPageResponse(res *ledger.ListResult) ledgerPageResponse {
	page := ledgerPageResponse{Items: []ledgerEntryResponse{}}
	if res == nil {
		return page
	}
	for _, e := range res.Items {
		page.Items = append(page.Items, newLedgerEntryResponse(e))
	}
	page.Cursor = res.Cursor
	return page
}

func newCampaignResponse(c *models.AdCampaign) *campaignResponse {
	if c == nil {
		return nil
	}
	placements := []string(c.Placements)
	if placements == nil {
		placements = []string{}
	}
	return &campaignResponse{
		ID:           c.ID,
		AdvertiserID: c.AdvertiserID,
		Title:        c.Title,
		Placements:   placements,
		Budget:       c.Budget,
		Status:       string(c.Status),
		Reference:    c.Reference,
		CreatedAt:    c.CreatedAt,
	}
}

func newAdBudgetResponse(res *payments.AdBudgetResult) *adBudgetResponse {
	if res == nil {
		return nil
	}
	return &adBudgetResponse{
		Campaign:  newCampaignResponse(res.Campaign),
		Reference: res.Reference,
		Balances:  res.Balances,
	}
}

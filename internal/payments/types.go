package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/internal/wallets"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
)

// Outcome tells callers whether the request did work or replayed a
// previous one.
type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

type AdBudgetInput struct {
	AdvertiserID uuid.UUID
	Title        string
	Budget       int64
	Placements   []string
}

type AdBudgetResult struct {
	Campaign  *models.AdCampaign `json:"campaign"`
	Reference string             `json:"reference"`
	Balances  wallets.Balances   `json:"balances"`
}

type TipInput struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Amount      int64
	Reference   string
}

type TipResult struct {
	Reference   string           `json:"reference"`
	Amount      int64            `json:"amount"`
	PlatformCut int64            `json:"platform_cut"`
	NetAmount   int64            `json:"net_amount"`
	Balances    wallets.Balances `json:"balances"`
	Outcome     Outcome          `json:"outcome"`
}

type PremiumInput struct {
	UserID           uuid.UUID
	Plan             enums.PremiumPlan
	Method           enums.ChargeMethod
	GatewayReference string
}

type PremiumResult struct {
	Plan             enums.PremiumPlan  `json:"plan"`
	Method           enums.ChargeMethod `json:"method"`
	Amount           int64              `json:"amount"`
	PremiumExpiresAt *time.Time         `json:"premium_expires_at,omitempty"`
	Reference        string             `json:"reference"`
	Balances         *wallets.Balances  `json:"balances,omitempty"`
	Outcome          Outcome            `json:"outcome"`
}

type FundingInput struct {
	UserID           uuid.UUID
	GatewayReference string
}

type FundingResult struct {
	Amount    int64             `json:"amount"`
	Reference string            `json:"reference"`
	Balances  *wallets.Balances `json:"balances,omitempty"`
	Outcome   Outcome           `json:"outcome"`
}

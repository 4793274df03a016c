package escrow

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/pkg/config"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/money"
)

// PolicyTerms are the marketplace terms that apply to one seller.
type PolicyTerms struct {
	CommissionBps      int64 `json:"commission_bps"`
	BoostCostKobo      int64 `json:"boost_cost_kobo"`
	BoostHours         int   `json:"boost_hours"`
	ActiveListingLimit int   `json:"active_listing_limit"`
}

// Policy supplies marketplace terms for a user.
type Policy interface {
	TermsFor(ctx context.Context, userID uuid.UUID) (PolicyTerms, error)
}

type premiumChecker interface {
	IsPremium(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ConfigPolicy serves terms from configuration, with a reduced commission for
// premium sellers.
type ConfigPolicy struct {
	cfg     config.MarketplaceConfig
	premium premiumChecker
}

func NewConfigPolicy(cfg config.MarketplaceConfig, premium premiumChecker) (*ConfigPolicy, error) {
	for _, bps := range []int64{cfg.CommissionBps, cfg.PremiumCommissionBps} {
		if bps < 0 || bps > money.MaxBps {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission bps out of range")
		}
	}
	return &ConfigPolicy{cfg: cfg, premium: premium}, nil
}

func (p *ConfigPolicy) TermsFor(ctx context.Context, userID uuid.UUID) (PolicyTerms, error) {
	terms := PolicyTerms{
		CommissionBps:      p.cfg.CommissionBps,
		BoostCostKobo:      p.cfg.BoostCostKobo,
		BoostHours:         p.cfg.BoostHours,
		ActiveListingLimit: p.cfg.ActiveListingLimit,
	}
	if p.premium == nil {
		return terms, nil
	}
	premium, err := p.premium.IsPremium(ctx, userID)
	if err != nil {
		return PolicyTerms{}, err
	}
	if premium {
		terms.CommissionBps = p.cfg.PremiumCommissionBps
	}
	return terms, nil
}

package enums

import "slices"

// AdCampaignStatus maps to the ad_campaign_status_enum enum in Postgres.
type AdCampaignStatus string

const (
	AdCampaignPendingFunding AdCampaignStatus = "pending_funding"
	AdCampaignActive         AdCampaignStatus = "active"
	AdCampaignFailed         AdCampaignStatus = "failed"
)

var validAdCampaignStatuses = []AdCampaignStatus{
	AdCampaignPendingFunding,
	AdCampaignActive,
	AdCampaignFailed,
}

func (a AdCampaignStatus) IsValid() bool {
	return slices.Contains(validAdCampaignStatuses, a)
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/enums"
)

type AdCampaign struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	AdvertiserID uuid.UUID              `gorm:"column:advertiser_id;type:uuid;not null"`
	Title        string                 `gorm:"column:title;not null"`
	Placements   pq.StringArray         `gorm:"column:placements;type:text[]"`
	Budget       int64                  `gorm:"column:budget;not null"`
	Status       enums.AdCampaignStatus `gorm:"column:status;type:ad_campaign_status_enum;not null"`
	Reference    string                 `gorm:"column:reference;not null;uniqueIndex"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (AdCampaign) TableName() string { return "ad_campaigns" }

func (c *AdCampaign) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

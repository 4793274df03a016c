package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/enums"
)

// Listing is a marketplace item. BuyerID and TransactionID are set only while
// the listing is pending or sold.
type Listing struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	SellerID          uuid.UUID               `gorm:"column:seller_id;type:uuid;not null"`
	Title             string                  `gorm:"column:title;not null"`
	Price             int64                   `gorm:"column:price;not null"`
	Status            enums.ListingStatus     `gorm:"column:status;type:listing_status_enum;not null"`
	BuyerID           *uuid.UUID              `gorm:"column:buyer_id;type:uuid"`
	TransactionID     *uuid.UUID              `gorm:"column:transaction_id;type:uuid"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;type:fulfillment_status_enum;not null"`
	ShippedAt         *time.Time              `gorm:"column:shipped_at"`
	BuyerConfirmedAt  *time.Time              `gorm:"column:buyer_confirmed_at"`
	Version           int64                   `gorm:"column:version;not null;default:0"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Listing) TableName() string { return "listings" }

func (l *Listing) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

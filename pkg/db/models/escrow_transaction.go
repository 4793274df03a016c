package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/enums"
)

// EscrowTransaction tracks one marketplace purchase. Amount is the gross
// price held from the buyer; PlatformFee and NetAmount are fixed on release.
type EscrowTransaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ListingID   uuid.UUID               `gorm:"column:listing_id;type:uuid;not null"`
	SenderID    uuid.UUID               `gorm:"column:sender_id;type:uuid;not null"`
	ReceiverID  uuid.UUID               `gorm:"column:receiver_id;type:uuid;not null"`
	Amount      int64                   `gorm:"column:amount;not null"`
	PlatformFee int64                   `gorm:"column:platform_fee;not null;default:0"`
	NetAmount   int64                   `gorm:"column:net_amount;not null;default:0"`
	Status      enums.TransactionStatus `gorm:"column:status;type:escrow_transaction_status_enum;not null"`
	Reference   string                  `gorm:"column:reference;not null;uniqueIndex"`
	CompletedAt *time.Time              `gorm:"column:completed_at"`
	FailedAt    *time.Time              `gorm:"column:failed_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (EscrowTransaction) TableName() string { return "escrow_transactions" }

func (t *EscrowTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}

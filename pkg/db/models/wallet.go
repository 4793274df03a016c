package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet holds a user's spendable and reserved funds in kobo.
// Balance always equals AvailableBalance + HeldBalance; it is recomputed in
// the same statement that applies a delta and never written on its own.
type Wallet struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	AvailableBalance int64     `gorm:"column:available_balance;not null;default:0"`
	HeldBalance      int64     `gorm:"column:held_balance;not null;default:0"`
	Balance          int64     `gorm:"column:balance;not null;default:0"`
	Version          int64     `gorm:"column:version;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }

func (w *Wallet) BeforeCreate(*gorm.DB) error {
	assignID(&w.ID)
	return nil
}

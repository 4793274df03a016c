package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/pkg/enums"
)

// UserProfile carries the premium flags toggled by premium charges.
type UserProfile struct {
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;primaryKey"`
	IsPremium        bool                `gorm:"column:is_premium;not null;default:false"`
	PremiumStatus    enums.PremiumStatus `gorm:"column:premium_status;type:premium_status_enum;not null"`
	PremiumExpiresAt *time.Time          `gorm:"column:premium_expires_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserProfile) TableName() string { return "user_profiles" }

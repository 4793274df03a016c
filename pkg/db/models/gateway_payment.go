package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/pkg/enums"
)

// GatewayPayment binds a gateway reference to the user and purpose that
// consumed it. A reference can be claimed once, forever.
type GatewayPayment struct {
	Reference string               `gorm:"column:reference;primaryKey"`
	UserID    uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	Purpose   enums.GatewayPurpose `gorm:"column:purpose;not null"`
	Amount    int64                `gorm:"column:amount;not null"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (GatewayPayment) TableName() string { return "gateway_payments" }

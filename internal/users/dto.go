package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
)

// ProfileDTO is the transport shape of a user's premium state.
type ProfileDTO struct {
	UserID           uuid.UUID           `json:"user_id"`
	IsPremium        bool                `json:"is_premium"`
	PremiumStatus    enums.PremiumStatus `json:"premium_status"`
	PremiumExpiresAt *time.Time          `json:"premium_expires_at,omitempty"`
}

func FromModel(p *models.UserProfile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		UserID:           p.UserID,
		IsPremium:        p.IsPremium,
		PremiumStatus:    p.PremiumStatus,
		PremiumExpiresAt: p.PremiumExpiresAt,
	}
}

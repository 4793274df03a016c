package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
)

// Service manages premium state on user profiles.
type Service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Profile returns the user's profile, or a non-premium default.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	profile, err := s.repo.FindProfile(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	if profile == nil {
		return &models.UserProfile{UserID: userID, PremiumStatus: enums.PremiumStatusNone}, nil
	}
	return profile, nil
}

// IsPremium reports whether the user has premium access right now. An
// expired subscription the cron job has not swept yet counts as lapsed.
func (s *Service) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return false, err
	}
	if !profile.IsPremium || profile.PremiumStatus != enums.PremiumStatusActive {
		return false, nil
	}
	return profile.PremiumExpiresAt == nil || profile.PremiumExpiresAt.After(s.now()), nil
}

// ActivatePremiumTx extends premium by plan's duration from the later of now
// and the current expiry, inside tx.
func (s *Service) ActivatePremiumTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, plan enums.PremiumPlan) (*models.UserProfile, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if _, err := enums.ParsePremiumPlan(string(plan)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid premium plan")
	}
	repo := s.repo.WithTx(tx)
	current, err := repo.FindProfile(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	start := s.now()
	if current != nil && current.PremiumStatus == enums.PremiumStatusActive &&
		current.PremiumExpiresAt != nil && current.PremiumExpiresAt.After(start) {
		start = current.PremiumExpiresAt.UTC()
	}
	expiresAt := start.Add(plan.Duration())
	if err := repo.UpsertPremium(ctx, userID, expiresAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate premium")
	}
	return &models.UserProfile{
		UserID:           userID,
		IsPremium:        true,
		PremiumStatus:    enums.PremiumStatusActive,
		PremiumExpiresAt: &expiresAt,
	}, nil
}

// ExpireLapsed is run by the premium-expiry cron job.
func (s *Service) ExpireLapsed(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpirePremium(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire premium")
	}
	return n, nil
}

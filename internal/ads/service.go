package ads

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/db"
	"github.com/angelmondragon/walletcore/pkg/db/models"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/outbox"
	"github.com/angelmondragon/walletcore/pkg/outbox/payloads"
	"github.com/angelmondragon/walletcore/pkg/pagination"
)

var validPlacements = map[string]struct{}{
	"feed":           {},
	"search":         {},
	"listing_detail": {},
}

// CampaignInput describes a campaign whose budget is already locked in the
// advertiser's wallet under Reference.
type CampaignInput struct {
	AdvertiserID uuid.UUID
	Title        string
	Budget       int64
	Placements   []string
	Reference    string
}

// Service creates and reads ad campaigns.
type Service interface {
	CreateCampaign(ctx context.Context, input CampaignInput) (*models.AdCampaign, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AdCampaign, error)
	ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit int) ([]models.AdCampaign, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   *Repository
	db     txRunner
	outbox outbox.Emitter
}

func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ads repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{repo: repo, db: tx, outbox: emitter}, nil
}

// CreateCampaign stores an active campaign and queues ad_campaign_funded in
// the same transaction. A repeated reference returns the stored campaign.
func (s *service) CreateCampaign(ctx context.Context, input CampaignInput) (*models.AdCampaign, error) {
	title := strings.TrimSpace(input.Title)
	switch {
	case input.AdvertiserID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "advertiser id required")
	case title == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	case input.Budget <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "budget must be positive")
	case strings.TrimSpace(input.Reference) == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}
	placements := make(pq.StringArray, 0, len(input.Placements))
	for _, p := range input.Placements {
		p = strings.ToLower(strings.TrimSpace(p))
		if _, ok := validPlacements[p]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown placement").
				WithDetails(map[string]any{"placement": p})
		}
		placements = append(placements, p)
	}

	campaign := &models.AdCampaign{
		ID:           uuid.New(),
		AdvertiserID: input.AdvertiserID,
		Title:        title,
		Placements:   placements,
		Budget:       input.Budget,
		Status:       enums.AdCampaignActive,
		Reference:    input.Reference,
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, campaign); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdCampaignFunded,
			AggregateType: enums.AggregateAdCampaign,
			AggregateID:   campaign.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdvertiserID, Role: string(enums.UserRoleUser)},
			Data: payloads.AdCampaignFundedEvent{
				CampaignID:   campaign.ID,
				AdvertiserID: input.AdvertiserID,
				Budget:       input.Budget,
				Reference:    input.Reference,
			},
		})
	})
	if err == nil {
		return campaign, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create campaign")
	}
	existing, findErr := s.repo.FindByReference(ctx, input.Reference)
	if findErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load campaign")
	}
	if existing == nil || existing.AdvertiserID != input.AdvertiserID {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "reference belongs to a different campaign")
	}
	return existing, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.AdCampaign, error) {
	campaign, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load campaign")
	}
	if campaign == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
	}
	return campaign, nil
}

func (s *service) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit int) ([]models.AdCampaign, error) {
	campaigns, err := s.repo.ListByAdvertiser(ctx, advertiserID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaigns")
	}
	return campaigns, nil
}

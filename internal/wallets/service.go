package wallets

import (
	"context"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/money"
)

// Service exposes read access to wallets.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
}

// View is the API shape of a wallet. A user with no wallet yet reads as zero.
type View struct {
	UserID           uuid.UUID  `json:"user_id"`
	AvailableBalance int64      `json:"available_balance"`
	HeldBalance      int64      `json:"held_balance"`
	Balance          int64      `json:"balance"`
	Display          Display    `json:"display"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// Display carries naira-formatted balances for clients that do not format
// kobo themselves.
type Display struct {
	Available string `json:"available"`
	Held      string `json:"held"`
	Balance   string `json:"balance"`
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	wallet, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	view := &View{UserID: userID}
	if wallet != nil {
		view.AvailableBalance = wallet.AvailableBalance
		view.HeldBalance = wallet.HeldBalance
		view.Balance = wallet.Balance
		updated := wallet.UpdatedAt
		view.UpdatedAt = &updated
	}
	view.Display = Display{
		Available: money.FormatNaira(view.AvailableBalance),
		Held:      money.FormatNaira(view.HeldBalance),
		Balance:   money.FormatNaira(view.Balance),
	}
	return view, nil
}

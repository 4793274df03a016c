package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/walletcore/pkg/logger"
)

type PremiumExpiryJobParams struct {
	Logger *logger.Logger
	Users  premiumExpirer
}

type premiumExpirer interface {
	ExpireLapsed(ctx context.Context) (int64, error)
}

func NewPremiumExpiryJob(params PremiumExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users service required")
	}
	return &premiumExpiryJob{logg: params.Logger, users: params.Users}, nil
}

type premiumExpiryJob struct {
	logg  *logger.Logger
	users premiumExpirer
}

func (j *premiumExpiryJob) Name() string { return "premium-expiry" }

func (j *premiumExpiryJob) Run(ctx context.Context) error {
	expired, err := j.users.ExpireLapsed(ctx)
	if err != nil {
		return fmt.Errorf("premium expiry: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "profiles_expired", expired), "premium expiry complete")
	return nil
}

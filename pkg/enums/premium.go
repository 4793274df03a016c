package enums

import (
	"fmt"
	"slices"
	"time"
)

type PremiumStatus string

const (
	PremiumStatusNone    PremiumStatus = "none"
	PremiumStatusActive  PremiumStatus = "active"
	PremiumStatusExpired PremiumStatus = "expired"
)

var validPremiumStatuses = []PremiumStatus{
	PremiumStatusNone,
	PremiumStatusActive,
	PremiumStatusExpired,
}

func (p PremiumStatus) IsValid() bool {
	return slices.Contains(validPremiumStatuses, p)
}

// PremiumPlan is a purchasable premium tier.
type PremiumPlan string

const (
	PremiumPlanMonthly PremiumPlan = "monthly"
	PremiumPlanYearly  PremiumPlan = "yearly"
)

// ParsePremiumPlan converts raw input into PremiumPlan.
func ParsePremiumPlan(value string) (PremiumPlan, error) {
	switch PremiumPlan(value) {
	case PremiumPlanMonthly, PremiumPlanYearly:
		return PremiumPlan(value), nil
	}
	return "", fmt.Errorf("invalid premium plan %q", value)
}

// Duration is the access period granted by one purchase of the plan.
func (p PremiumPlan) Duration() time.Duration {
	switch p {
	case PremiumPlanYearly:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

package model

import (
	"time"

	"prepvio-subscription/internal/domain"
)

type PlanDuration string

const (
	DurationLifetime PlanDuration = "lifetime"
	DurationMonthly  PlanDuration = "monthly"
	DurationYearly   PlanDuration = "yearly"
)

// LifetimeEnd is the end date given to lifetime subscriptions.
var LifetimeEnd = time.Date(2099, time.December, 31, 23, 59, 59, 0, time.UTC)

func (d PlanDuration) Valid() bool {
	switch d {
	case DurationLifetime, DurationMonthly, DurationYearly:
		return true
	}
	return false
}

// Plan is an immutable subscription tier. Amount is in whole rupees.
type Plan struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Amount     int64        `json:"amount" yaml:"amount"`
	Duration   PlanDuration `json:"duration" yaml:"duration"`
	Interviews int          `json:"interviews" yaml:"interviews"`
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, amount int64, duration PlanDuration, interviews int) (*Plan, error) {
	if id == "" || name == "" || amount < 0 || interviews < 0 || !duration.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:         id,
		Name:       name,
		Amount:     amount,
		Duration:   duration,
		Interviews: interviews,
	}, nil
}

// EndDate returns the exclusive end of a subscription to p starting at start.
// Month and year arithmetic is calendar based.
func (p *Plan) EndDate(start time.Time) time.Time {
	switch p.Duration {
	case DurationMonthly:
		return start.AddDate(0, 1, 0)
	case DurationYearly:
		return start.AddDate(1, 0, 0)
	default:
		return LifetimeEnd
	}
}

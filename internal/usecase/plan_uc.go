package usecase

import (
	"fmt"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
)

// Compile-time check
var _ PlanCatalog = (*planCatalog)(nil)

// PlanCatalog is the single source of plan prices and credit allotments.
type PlanCatalog interface {
	Lookup(planID string) (*model.Plan, error)
	All() []model.Plan
}

type planCatalog struct {
	plans []model.Plan
	byID  map[string]model.Plan
}

// NewPlanCatalog validates plans and freezes them into a catalog.
func NewPlanCatalog(plans []model.Plan) (*planCatalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("plan catalog: %w: no plans", domain.ErrInvalidArgument)
	}
	c := &planCatalog{
		plans: make([]model.Plan, 0, len(plans)),
		byID:  make(map[string]model.Plan, len(plans)),
	}
	for _, p := range plans {
		if _, err := model.NewPlan(p.ID, p.Name, p.Amount, p.Duration, p.Interviews); err != nil {
			return nil, fmt.Errorf("plan catalog: plan %q: %w", p.ID, err)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("plan catalog: duplicate plan %q: %w", p.ID, domain.ErrAlreadyExists)
		}
		c.byID[p.ID] = p
		c.plans = append(c.plans, p)
	}
	return c, nil
}

func (c *planCatalog) Lookup(planID string) (*model.Plan, error) {
	p, ok := c.byID[planID]
	if !ok {
		return nil, domain.NotFound("Invalid planId")
	}
	return &p, nil
}

// All returns a copy in configured order.
func (c *planCatalog) All() []model.Plan {
	out := make([]model.Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

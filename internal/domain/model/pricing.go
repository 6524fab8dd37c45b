package model

import "github.com/shopspring/decimal"

type PricingKind string

const (
	PricingPlain    PricingKind = "plain"
	PricingUpgraded PricingKind = "upgraded"
)

// OrderPricing is the price of a plan before any promo code.
// UpgradeDiscount and PreviousPlanID are only set for PricingUpgraded.
type OrderPricing struct {
	Kind            PricingKind
	OriginalAmount  int64
	BaseAmount      int64
	UpgradeDiscount int64
	PreviousPlanID  string
}

func PlainPricing(plan *Plan) OrderPricing {
	return OrderPricing{
		Kind:           PricingPlain,
		OriginalAmount: plan.Amount,
		BaseAmount:     plan.Amount,
	}
}

// UpgradedPricing credits the current plan's price against the new plan.
// Callers only use it when plan is strictly more expensive than current.
func UpgradedPricing(plan, current *Plan) OrderPricing {
	return OrderPricing{
		Kind:            PricingUpgraded,
		OriginalAmount:  plan.Amount,
		BaseAmount:      plan.Amount - current.Amount,
		UpgradeDiscount: current.Amount,
		PreviousPlanID:  current.ID,
	}
}

// PriceFor decides between a plain purchase and an upgrade of sub.
// current is the catalog entry for sub.PlanID and may be nil.
func PriceFor(sub Subscription, plan, current *Plan) OrderPricing {
	if sub.IsPlanChange(plan.ID) && current != nil && plan.Amount > current.Amount {
		return UpgradedPricing(plan, current)
	}
	return PlainPricing(plan)
}

func (p OrderPricing) IsUpgrade() bool { return p.Kind == PricingUpgraded }

// PromoApplication is a successfully evaluated promo code.
type PromoApplication struct {
	Code           string
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// FinalAmount is what the customer pays for pricing with an optional promo.
func FinalAmount(pricing OrderPricing, promo *PromoApplication) decimal.Decimal {
	if promo != nil {
		return promo.FinalAmount
	}
	return decimal.NewFromInt(pricing.BaseAmount)
}

// ToMinorUnits converts rupees to paise, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

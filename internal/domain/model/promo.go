package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"prepvio-subscription/internal/domain"
)

type DiscountType string

const (
	DiscountFlat       DiscountType = "flat"
	DiscountPercentage DiscountType = "percentage"
)

var hundred = decimal.NewFromInt(100)

// PromoCode is a discount token with eligibility rules.
type PromoCode struct {
	ID                string
	Code              string
	Description       string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MaxDiscount       *decimal.Decimal
	MinPurchaseAmount int64
	ApplicablePlans   []string // empty means every plan
	UsageLimit        *int
	UsageCount        int
	PerUserLimit      int
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time

	UsedBy []PromoUsage
}

// PromoUsage is one redemption of a promo code.
type PromoUsage struct {
	Code            string
	UserID          string
	OrderID         string
	DiscountApplied decimal.Decimal
	UsedAt          time.Time
}

// NormalizeCode upper-cases and trims a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewPromoCode validates the rules and returns an active code.
func NewPromoCode(id, code string, typ DiscountType, value decimal.Decimal) (*PromoCode, error) {
	code = NormalizeCode(code)
	if id == "" || code == "" || value.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	switch typ {
	case DiscountFlat:
	case DiscountPercentage:
		if value.GreaterThan(hundred) {
			return nil, domain.ErrInvalidArgument
		}
	default:
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &PromoCode{
		ID:            id,
		Code:          code,
		DiscountType:  typ,
		DiscountValue: value,
		PerUserLimit:  1,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// InWindow reports whether now falls in [ValidFrom, ValidUntil].
func (p *PromoCode) InWindow(now time.Time) bool {
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	return true
}

func (p *PromoCode) Exhausted() bool {
	return p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit
}

func (p *PromoCode) AppliesTo(planID string) bool {
	if len(p.ApplicablePlans) == 0 {
		return true
	}
	for _, id := range p.ApplicablePlans {
		if id == planID {
			return true
		}
	}
	return false
}

// Discount computes the discount for base. It never exceeds base.
func (p *PromoCode) Discount(base int64) decimal.Decimal {
	b := decimal.NewFromInt(base)
	var d decimal.Decimal
	switch p.DiscountType {
	case DiscountPercentage:
		d = b.Mul(p.DiscountValue).Div(hundred)
		if p.MaxDiscount != nil && d.GreaterThan(*p.MaxDiscount) {
			d = *p.MaxDiscount
		}
	default:
		d = p.DiscountValue
	}
	if d.GreaterThan(b) {
		d = b
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d
}

// Apply returns the discount and final amount for base.
func (p *PromoCode) Apply(base int64) PromoApplication {
	d := p.Discount(base)
	final := decimal.NewFromInt(base).Sub(d)
	if final.IsNegative() {
		final = decimal.Zero
	}
	return PromoApplication{Code: p.Code, DiscountAmount: d, FinalAmount: final}
}

// Remaining returns how many redemptions are left, or -1 when unlimited.
func (p *PromoCode) Remaining() int {
	if p.UsageLimit == nil {
		return -1
	}
	if r := *p.UsageLimit - p.UsageCount; r > 0 {
		return r
	}
	return 0
}

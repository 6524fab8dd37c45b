package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // order created at the gateway, awaiting verification
	PaymentStatusSuccess PaymentStatus = "success" // verified and redeemed
)

// PaymentRecord is one order a user placed. Status only moves pending -> success.
type PaymentRecord struct {
	ID        string // ULID
	UserID    string
	OrderID   string // gateway order id, unique
	Receipt   string
	Provider  string
	PlanID    string
	Currency  string
	Amount    decimal.Decimal // charged amount in rupees
	Pricing   OrderPricing
	Promo     *PromoApplication
	Status    PaymentStatus
	PaymentID string
	Signature string
	CreatedAt time.Time
	PaidAt    *time.Time
}

func (p *PaymentRecord) IsZero() bool { return p == nil || p.OrderID == "" }

func (p *PaymentRecord) Succeeded() bool { return p.Status == PaymentStatusSuccess }

func (p *PaymentRecord) OriginalAmount() int64  { return p.Pricing.OriginalAmount }
func (p *PaymentRecord) UpgradeDiscount() int64 { return p.Pricing.UpgradeDiscount }
func (p *PaymentRecord) PreviousPlanID() string { return p.Pricing.PreviousPlanID }
func (p *PaymentRecord) IsUpgrade() bool        { return p.Pricing.IsUpgrade() }

func (p *PaymentRecord) PromoCode() string {
	if p.Promo == nil {
		return ""
	}
	return p.Promo.Code
}

func (p *PaymentRecord) DiscountAmount() decimal.Decimal {
	if p.Promo == nil {
		return decimal.Zero
	}
	return p.Promo.DiscountAmount
}

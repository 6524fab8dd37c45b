package api

import (
	"time"

	"github.com/shopspring/decimal"

	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/usecase"
)

type createOrderRequest struct {
	PlanID    string `json:"planId" validate:"required,max=64"`
	PromoCode string `json:"promoCode" validate:"max=32"`
}

type validatePromoRequest struct {
	Code   string `json:"code" validate:"required,max=32"`
	PlanID string `json:"planId" validate:"required,max=64"`
}

type subscriptionView struct {
	Active              bool       `json:"active"`
	PlanID              string     `json:"planId,omitempty"`
	PlanName            string     `json:"planName,omitempty"`
	StartDate           *time.Time `json:"startDate,omitempty"`
	EndDate             *time.Time `json:"endDate,omitempty"`
	InterviewsTotal     int        `json:"interviewsTotal"`
	InterviewsUsed      int        `json:"interviewsUsed"`
	InterviewsRemaining int        `json:"interviewsRemaining"`
}

func toSubscriptionView(s model.Subscription) subscriptionView {
	v := subscriptionView{
		Active:              s.Active,
		PlanID:              s.PlanID,
		PlanName:            s.PlanName,
		InterviewsTotal:     s.InterviewsTotal,
		InterviewsUsed:      s.InterviewsUsed,
		InterviewsRemaining: s.InterviewsRemaining,
	}
	if !s.StartDate.IsZero() {
		start := s.StartDate
		v.StartDate = &start
	}
	if !s.EndDate.IsZero() {
		end := s.EndDate
		v.EndDate = &end
	}
	return v
}

type pricingView struct {
	OriginalAmount  int64   `json:"originalAmount"`
	BaseAmount      int64   `json:"baseAmount"`
	IsUpgrade       bool    `json:"isUpgrade"`
	UpgradeDiscount int64   `json:"upgradeDiscount"`
	PreviousPlanID  string  `json:"previousPlanId,omitempty"`
	DiscountAmount  float64 `json:"discountAmount"`
	FinalAmount     float64 `json:"finalAmount"`
}

type promoView struct {
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discountAmount"`
	FinalAmount    float64 `json:"finalAmount"`
}

func toPricingView(p model.OrderPricing, promo *model.PromoApplication, final decimal.Decimal) pricingView {
	v := pricingView{
		OriginalAmount:  p.OriginalAmount,
		BaseAmount:      p.BaseAmount,
		IsUpgrade:       p.IsUpgrade(),
		UpgradeDiscount: p.UpgradeDiscount,
		PreviousPlanID:  p.PreviousPlanID,
		FinalAmount:     final.InexactFloat64(),
	}
	if promo != nil {
		v.DiscountAmount = promo.DiscountAmount.InexactFloat64()
	}
	return v
}

func toPromoView(p *model.PromoApplication) *promoView {
	if p == nil {
		return nil
	}
	return &promoView{Code: p.Code, DiscountAmount: p.DiscountAmount.InexactFloat64(), FinalAmount: p.FinalAmount.InexactFloat64()}
}

type orderView struct {
	Success  bool        `json:"success"`
	OrderID  string      `json:"orderId"`
	KeyID    string      `json:"keyId"`
	Currency string      `json:"currency"`
	Amount   int64       `json:"amount"` // minor units
	Receipt  string      `json:"receipt"`
	PlanID   string      `json:"planId"`
	Pricing  pricingView `json:"pricing"`
	Promo    *promoView  `json:"promo,omitempty"`
}

func toOrderView(in *usecase.OrderIntent) orderView {
	return orderView{
		Success:  true,
		OrderID:  in.OrderID,
		KeyID:    in.KeyID,
		Currency: in.Currency,
		Amount:   in.AmountMinor,
		Receipt:  in.Receipt,
		PlanID:   in.PlanID,
		Pricing:  toPricingView(in.Pricing, in.Promo, in.FinalAmount),
		Promo:    toPromoView(in.Promo),
	}
}

type redemptionView struct {
	Success         bool             `json:"success"`
	Message         string           `json:"message"`
	OrderID         string           `json:"orderId"`
	PlanID          string           `json:"planId"`
	AlreadyRedeemed bool             `json:"alreadyRedeemed"`
	Granted         int              `json:"granted"`
	Subscription    subscriptionView `json:"subscription"`
}

func toRedemptionView(r *usecase.RedemptionResult) redemptionView {
	msg := "Payment verified and subscription activated"
	if r.AlreadyRedeemed {
		msg = "Payment already verified"
	}
	return redemptionView{
		Success:         true,
		Message:         msg,
		OrderID:         r.OrderID,
		PlanID:          r.PlanID,
		AlreadyRedeemed: r.AlreadyRedeemed,
		Granted:         r.Granted,
		Subscription:    toSubscriptionView(r.Subscription),
	}
}

type attemptView struct {
	ID             string    `json:"id"`
	PlanID         string    `json:"planId"`
	StartedAt      time.Time `json:"startedAt"`
	RemainingAfter int       `json:"remainingAfter"`
}

type paymentView struct {
	OrderID         string     `json:"orderId"`
	PaymentID       string     `json:"paymentId,omitempty"`
	PlanID          string     `json:"planId"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	OriginalAmount  int64      `json:"originalAmount"`
	IsUpgrade       bool       `json:"isUpgrade"`
	UpgradeDiscount int64      `json:"upgradeDiscount"`
	PromoCode       string     `json:"promoCode,omitempty"`
	DiscountAmount  float64    `json:"discountAmount"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
}

func toPaymentView(p *model.PaymentRecord) paymentView {
	return paymentView{
		OrderID:         p.OrderID,
		PaymentID:       p.PaymentID,
		PlanID:          p.PlanID,
		Amount:          p.Amount.InexactFloat64(),
		Currency:        p.Currency,
		OriginalAmount:  p.OriginalAmount(),
		IsUpgrade:       p.IsUpgrade(),
		UpgradeDiscount: p.UpgradeDiscount(),
		PromoCode:       p.PromoCode(),
		DiscountAmount:  p.DiscountAmount().InexactFloat64(),
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
		PaidAt:          p.PaidAt,
	}
}

type notificationView struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type promoCodeView struct {
	Code              string     `json:"code"`
	Description       string     `json:"description,omitempty"`
	DiscountType      string     `json:"discountType"`
	DiscountValue     float64    `json:"discountValue"`
	MaxDiscount       *float64   `json:"maxDiscount,omitempty"`
	MinPurchaseAmount int64      `json:"minPurchaseAmount"`
	ApplicablePlans   []string   `json:"applicablePlans"`
	UsageLimit        *int       `json:"usageLimit,omitempty"`
	UsageCount        int        `json:"usageCount"`
	PerUserLimit      int        `json:"perUserLimit"`
	ValidFrom         *time.Time `json:"validFrom,omitempty"`
	ValidUntil        *time.Time `json:"validUntil,omitempty"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func toPromoCodeView(p *model.PromoCode) promoCodeView {
	v := promoCodeView{
		Code:              p.Code,
		Description:       p.Description,
		DiscountType:      string(p.DiscountType),
		DiscountValue:     p.DiscountValue.InexactFloat64(),
		MinPurchaseAmount: p.MinPurchaseAmount,
		ApplicablePlans:   p.ApplicablePlans,
		UsageLimit:        p.UsageLimit,
		UsageCount:        p.UsageCount,
		PerUserLimit:      p.PerUserLimit,
		ValidFrom:         p.ValidFrom,
		ValidUntil:        p.ValidUntil,
		Active:            p.Active,
		CreatedAt:         p.CreatedAt,
	}
	if v.ApplicablePlans == nil {
		v.ApplicablePlans = []string{}
	}
	if p.MaxDiscount != nil {
		m := p.MaxDiscount.InexactFloat64()
		v.MaxDiscount = &m
	}
	return v
}

type promoUsageView struct {
	UserID          string    `json:"userId"`
	OrderID         string    `json:"orderId"`
	DiscountApplied float64   `json:"discountApplied"`
	UsedAt          time.Time `json:"usedAt"`
}

type promoStatsView struct {
	Code          string           `json:"code"`
	Active        bool             `json:"active"`
	UsageCount    int              `json:"usageCount"`
	UsageLimit    *int             `json:"usageLimit"`
	Remaining     *int             `json:"remaining"` // null when unlimited
	TotalDiscount float64          `json:"totalDiscount"`
	UsedBy        []promoUsageView `json:"usedBy"`
}

func toPromoStatsView(s *usecase.PromoStats) promoStatsView {
	v := promoStatsView{
		Code:          s.Code,
		Active:        s.Active,
		UsageCount:    s.UsageCount,
		UsageLimit:    s.UsageLimit,
		TotalDiscount: s.TotalDiscount.InexactFloat64(),
		UsedBy:        make([]promoUsageView, 0, len(s.UsedBy)),
	}
	if s.Remaining >= 0 {
		r := s.Remaining
		v.Remaining = &r
	}
	for _, u := range s.UsedBy {
		v.UsedBy = append(v.UsedBy, promoUsageView{
			UserID:          u.UserID,
			OrderID:         u.OrderID,
			DiscountApplied: u.DiscountApplied.InexactFloat64(),
			UsedAt:          u.UsedAt,
		})
	}
	return v
}

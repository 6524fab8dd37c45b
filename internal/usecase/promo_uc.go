package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/repository"
	"prepvio-subscription/internal/infra/logging"
	"prepvio-subscription/internal/infra/metrics"
)

// Compile-time check
var _ PromoUseCase = (*promoUC)(nil)

// PromoUseCase evaluates promo codes and manages them for admins.
type PromoUseCase interface {
	// Evaluate is side-effect free. It never records usage.
	Evaluate(ctx context.Context, code, userID, planID string, baseAmount int64) (*model.PromoApplication, error)

	Create(ctx context.Context, in CreatePromoInput) (*model.PromoCode, error)
	Deactivate(ctx context.Context, code string) error
	Stats(ctx context.Context, code string) (*PromoStats, error)
	List(ctx context.Context) ([]*model.PromoCode, error)
}

// CreatePromoInput is what an admin submits to create a code.
type CreatePromoInput struct {
	Code              string     `json:"code" validate:"required,min=3,max=32,alphanum"`
	Description       string     `json:"description" validate:"max=256"`
	DiscountType      string     `json:"discountType" validate:"required,oneof=flat percentage"`
	DiscountValue     float64    `json:"discountValue" validate:"gte=0"`
	MaxDiscount       *float64   `json:"maxDiscount,omitempty" validate:"omitempty,gt=0"`
	MinPurchaseAmount int64      `json:"minPurchaseAmount" validate:"gte=0"`
	ApplicablePlans   []string   `json:"applicablePlans" validate:"dive,required"`
	UsageLimit        *int       `json:"usageLimit,omitempty" validate:"omitempty,gt=0"`
	PerUserLimit      int        `json:"perUserLimit" validate:"gte=0"`
	ValidFrom         *time.Time `json:"validFrom,omitempty"`
	ValidUntil        *time.Time `json:"validUntil,omitempty"`
}

// PromoStats summarises the redemptions of one code.
type PromoStats struct {
	Code          string
	Active        bool
	UsageCount    int
	UsageLimit    *int
	Remaining     int // -1 when unlimited
	TotalDiscount decimal.Decimal
	UsedBy        []model.PromoUsage
}

type promoUC struct {
	promos   repository.PromoRepository
	catalog  PlanCatalog
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewPromoUseCase(promos repository.PromoRepository, catalog PlanCatalog, logger *zerolog.Logger) *promoUC {
	return &promoUC{
		promos:   promos,
		catalog:  catalog,
		validate: validator.New(),
		log:      logger,
	}
}

func (u *promoUC) Evaluate(ctx context.Context, code, userID, planID string, baseAmount int64) (*model.PromoApplication, error) {
	defer logging.TraceDuration(u.log, "PromoUC.Evaluate")()

	code = model.NormalizeCode(code)
	if code == "" {
		return nil, domain.Validation("Promo code is required")
	}
	promo, err := u.promos.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncPromoEvaluation("invalid")
			return nil, domain.NotFound("Invalid promo code")
		}
		return nil, err
	}

	if err := u.checkEligibility(ctx, promo, userID, planID, baseAmount); err != nil {
		if e, ok := domain.AsError(err); ok {
			metrics.IncPromoEvaluation(string(e.Reason))
		}
		return nil, err
	}

	app := promo.Apply(baseAmount)
	metrics.IncPromoEvaluation("ok")
	return &app, nil
}

func (u *promoUC) checkEligibility(ctx context.Context, promo *model.PromoCode, userID, planID string, baseAmount int64) error {
	if !promo.Active {
		return domain.Eligibility(domain.ReasonPromoInactive, "Promo code is no longer active")
	}
	if !promo.InWindow(time.Now().UTC()) {
		return domain.Eligibility(domain.ReasonPromoExpired, "Promo code has expired or is not yet valid")
	}
	if promo.Exhausted() {
		return domain.Eligibility(domain.ReasonPromoExhausted, "Promo code usage limit reached")
	}
	used, err := u.promos.CountUserUsages(ctx, repository.NoTX, promo.Code, userID)
	if err != nil {
		return err
	}
	if used >= promo.PerUserLimit {
		return domain.Eligibility(domain.ReasonPromoUserLimit, "You have already used this promo code")
	}
	if !promo.AppliesTo(planID) {
		return domain.Eligibility(domain.ReasonPromoNotApplicable, "Promo code is not applicable to the selected plan")
	}
	if baseAmount < promo.MinPurchaseAmount {
		return domain.Eligibility(domain.ReasonPromoMinPurchase,
			fmt.Sprintf("Minimum purchase amount of ₹%d required for this promo code", promo.MinPurchaseAmount))
	}
	return nil
}

func (u *promoUC) Create(ctx context.Context, in CreatePromoInput) (*model.PromoCode, error) {
	defer logging.TraceDuration(u.log, "PromoUC.Create")()

	if err := u.validate.Struct(in); err != nil {
		return nil, domain.Validation("Invalid promo code: " + err.Error())
	}
	if in.ValidFrom != nil && in.ValidUntil != nil && in.ValidUntil.Before(*in.ValidFrom) {
		return nil, domain.Validation("validUntil must not be before validFrom")
	}
	for _, planID := range in.ApplicablePlans {
		if _, err := u.catalog.Lookup(planID); err != nil {
			return nil, domain.Validation(fmt.Sprintf("Unknown plan %q in applicablePlans", planID))
		}
	}

	promo, err := model.NewPromoCode(uuid.NewString(), in.Code, model.DiscountType(in.DiscountType), decimal.NewFromFloat(in.DiscountValue))
	if err != nil {
		return nil, domain.Validation("Invalid discount settings")
	}
	promo.Description = in.Description
	if in.MaxDiscount != nil {
		m := decimal.NewFromFloat(*in.MaxDiscount)
		promo.MaxDiscount = &m
	}
	promo.MinPurchaseAmount = in.MinPurchaseAmount
	promo.ApplicablePlans = in.ApplicablePlans
	promo.UsageLimit = in.UsageLimit
	if in.PerUserLimit > 0 {
		promo.PerUserLimit = in.PerUserLimit
	}
	promo.ValidFrom = in.ValidFrom
	promo.ValidUntil = in.ValidUntil

	if err := u.promos.Create(ctx, repository.NoTX, promo); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.Conflict("Promo code already exists")
		}
		return nil, err
	}
	u.log.Info().Str("code", promo.Code).Str("type", string(promo.DiscountType)).Msg("promo code created")
	return promo, nil
}

func (u *promoUC) Deactivate(ctx context.Context, code string) error {
	defer logging.TraceDuration(u.log, "PromoUC.Deactivate")()

	code = model.NormalizeCode(code)
	if err := u.promos.Deactivate(ctx, repository.NoTX, code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound("Promo code not found")
		}
		return err
	}
	u.log.Info().Str("code", code).Msg("promo code deactivated")
	return nil
}

func (u *promoUC) Stats(ctx context.Context, code string) (*PromoStats, error) {
	defer logging.TraceDuration(u.log, "PromoUC.Stats")()

	code = model.NormalizeCode(code)
	promo, err := u.promos.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("Promo code not found")
		}
		return nil, err
	}
	usages, err := u.promos.ListUsages(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, us := range usages {
		total = total.Add(us.DiscountApplied)
	}
	return &PromoStats{
		Code:          promo.Code,
		Active:        promo.Active,
		UsageCount:    promo.UsageCount,
		UsageLimit:    promo.UsageLimit,
		Remaining:     promo.Remaining(),
		TotalDiscount: total,
		UsedBy:        usages,
	}, nil
}

func (u *promoUC) List(ctx context.Context) ([]*model.PromoCode, error) {
	defer logging.TraceDuration(u.log, "PromoUC.List")()
	return u.promos.List(ctx, repository.NoTX)
}

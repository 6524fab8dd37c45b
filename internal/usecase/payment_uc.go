package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/adapter"
	"prepvio-subscription/internal/domain/ports/repository"
	"prepvio-subscription/internal/infra/logging"
	"prepvio-subscription/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PREP29 grants a fixed number of interviews regardless of the plan bought.
// TODO: move the override onto PromoCode once product confirms whether it is plan independent.
const (
	PromoOverrideCode       = "PREP29"
	PromoOverrideInterviews = 2
)

// PaymentUseCase is the order and redemption ledger.
type PaymentUseCase interface {
	// CreateOrder prices planID for the user and opens a gateway order.
	CreateOrder(ctx context.Context, userID, planID, promoCode string) (*OrderIntent, error)
	// PreviewPromo prices planID with code exactly like CreateOrder, without side effects.
	PreviewPromo(ctx context.Context, userID, planID, code string) (*OrderQuote, error)
	// VerifyAndRedeem checks the checkout signature and redeems the order. Safe to repeat.
	VerifyAndRedeem(ctx context.Context, userID string, in VerifyInput) (*RedemptionResult, error)
	// RedeemWebhook redeems a captured payment reported by the gateway.
	// The result is nil for events that do not carry a captured payment.
	RedeemWebhook(ctx context.Context, body []byte, signature string) (*RedemptionResult, error)
	// Reconcile redeems orderID if the gateway reports a captured payment for it.
	Reconcile(ctx context.Context, orderID string) (*RedemptionResult, bool, error)
	History(ctx context.Context, userID string) ([]*model.PaymentRecord, error)
}

type OrderQuote struct {
	PlanID      string
	Pricing     model.OrderPricing
	Promo       *model.PromoApplication
	FinalAmount decimal.Decimal
}

type OrderIntent struct {
	OrderQuote
	OrderID     string
	KeyID       string
	Currency    string
	AmountMinor int64
	Receipt     string
}

type VerifyInput struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type RedemptionResult struct {
	OrderID         string
	PlanID          string
	AlreadyRedeemed bool
	Granted         int
	Subscription    model.Subscription
}

type LedgerOptions struct {
	Currency     string
	OrderTimeout time.Duration
}

type paymentUC struct {
	users    repository.UserRepository
	payments repository.PaymentRepository
	promos   repository.PromoRepository
	tm       repository.TransactionManager

	catalog  PlanCatalog
	promoUC  PromoUseCase
	gateway  adapter.PaymentGateway
	notifier adapter.Notifier

	opts     LedgerOptions
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	users repository.UserRepository,
	payments repository.PaymentRepository,
	promos repository.PromoRepository,
	tm repository.TransactionManager,
	catalog PlanCatalog,
	promoUC PromoUseCase,
	gateway adapter.PaymentGateway,
	notifier adapter.Notifier,
	opts LedgerOptions,
	logger *zerolog.Logger,
) *paymentUC {
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.OrderTimeout <= 0 {
		opts.OrderTimeout = 10 * time.Second
	}
	return &paymentUC{
		users:    users,
		payments: payments,
		promos:   promos,
		tm:       tm,
		catalog:  catalog,
		promoUC:  promoUC,
		gateway:  gateway,
		notifier: notifier,
		opts:     opts,
		validate: validator.New(),
		log:      logger,
	}
}

func (u *paymentUC) CreateOrder(ctx context.Context, userID, planID, promoCode string) (*OrderIntent, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateOrder")()
	l := logging.With(ctx, u.log)

	q, err := u.quote(ctx, userID, planID, promoCode)
	if err != nil {
		return nil, err
	}

	receipt := "rcpt_" + ulid.Make().String()
	amountMinor := model.ToMinorUnits(q.FinalAmount)
	notes := map[string]string{"userId": userID, "planId": q.PlanID}
	if q.Promo != nil {
		notes["promoCode"] = q.Promo.Code
	}

	gctx, cancel := context.WithTimeout(ctx, u.opts.OrderTimeout)
	defer cancel()
	order, err := u.gateway.CreateOrder(gctx, amountMinor, u.opts.Currency, receipt, notes)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded) {
			metrics.IncPayment("gateway_timeout")
			l.Warn().Err(err).Str("plan_id", q.PlanID).Dur("timeout", u.opts.OrderTimeout).Msg("gateway order timed out")
			return nil, domain.Unavailable("Payment gateway timed out, please try again", domain.ErrGatewayTimeout, true)
		}
		metrics.IncPayment("gateway_error")
		l.Error().Err(err).Str("plan_id", q.PlanID).Msg("gateway order failed")
		return nil, domain.Unavailable("Failed to create payment order", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err), false)
	}

	rec := &model.PaymentRecord{
		ID:        ulid.Make().String(),
		UserID:    userID,
		OrderID:   order.OrderID,
		Receipt:   receipt,
		Provider:  u.gateway.Name(),
		PlanID:    q.PlanID,
		Currency:  u.opts.Currency,
		Amount:    q.FinalAmount,
		Pricing:   q.Pricing,
		Promo:     q.Promo,
		Status:    model.PaymentStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.payments.Create(ctx, repository.NoTX, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.Conflict("Duplicate payment order")
		}
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	l.Info().Str("order_id", rec.OrderID).Str("plan_id", rec.PlanID).Str("amount", rec.Amount.String()).
		Bool("upgrade", rec.IsUpgrade()).Str("promo", rec.PromoCode()).Msg("order created")

	return &OrderIntent{
		OrderQuote:  *q,
		OrderID:     order.OrderID,
		KeyID:       u.gateway.KeyID(),
		Currency:    u.opts.Currency,
		AmountMinor: amountMinor,
		Receipt:     receipt,
	}, nil
}

func (u *paymentUC) PreviewPromo(ctx context.Context, userID, planID, code string) (*OrderQuote, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.PreviewPromo")()
	if model.NormalizeCode(code) == "" {
		return nil, domain.Validation("Promo code is required")
	}
	return u.quote(ctx, userID, planID, code)
}

// quote resolves the plan, applies upgrade pricing and then the promo code.
func (u *paymentUC) quote(ctx context.Context, userID, planID, code string) (*OrderQuote, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, domain.Validation("planId is required")
	}
	plan, err := u.catalog.Lookup(planID)
	if err != nil {
		return nil, err
	}
	if plan.Amount <= 0 {
		return nil, domain.Validation("Plan cannot be purchased")
	}
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("User not found")
		}
		return nil, err
	}

	var current *model.Plan
	if user.Subscription.PlanID != "" {
		if p, err := u.catalog.Lookup(user.Subscription.PlanID); err == nil {
			current = p
		}
	}
	q := &OrderQuote{PlanID: plan.ID, Pricing: model.PriceFor(user.Subscription, plan, current)}

	if code = model.NormalizeCode(code); code != "" {
		app, err := u.promoUC.Evaluate(ctx, code, userID, plan.ID, q.Pricing.BaseAmount)
		if err != nil {
			return nil, err
		}
		q.Promo = app
	}
	q.FinalAmount = model.FinalAmount(q.Pricing, q.Promo)
	return q, nil
}

func (u *paymentUC) VerifyAndRedeem(ctx context.Context, userID string, in VerifyInput) (*RedemptionResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.VerifyAndRedeem")()
	start := time.Now()

	if err := u.validate.Struct(in); err != nil {
		metrics.ObservePaymentVerify("fail", "bad_request", time.Since(start))
		return nil, domain.Validation("orderId, paymentId and signature are required")
	}
	if !u.gateway.VerifyPaymentSignature(in.OrderID, in.PaymentID, in.Signature) {
		metrics.ObservePaymentVerify("fail", "bad_signature", time.Since(start))
		l := logging.With(ctx, u.log)
		l.Warn().Str("order_id", in.OrderID).Msg("payment signature mismatch")
		return nil, domain.Integrity("Invalid payment signature")
	}

	res, err := u.redeem(ctx, userID, in.OrderID, in.PaymentID, in.Signature)
	if err != nil {
		metrics.ObservePaymentVerify("fail", verifyReason(err), time.Since(start))
		return nil, err
	}
	metrics.ObservePaymentVerify("ok", "", time.Since(start))
	return res, nil
}

func (u *paymentUC) RedeemWebhook(ctx context.Context, body []byte, signature string) (*RedemptionResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.RedeemWebhook")()

	ev, err := u.gateway.ParseWebhook(body, signature)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			return nil, domain.Integrity("Invalid webhook signature")
		}
		return nil, domain.Validation("Malformed webhook payload")
	}
	if !ev.Captured || ev.OrderID == "" || ev.PaymentID == "" {
		u.log.Debug().Str("event", ev.Event).Msg("webhook ignored")
		return nil, nil
	}
	return u.redeem(ctx, "", ev.OrderID, ev.PaymentID, "")
}

func (u *paymentUC) Reconcile(ctx context.Context, orderID string) (*RedemptionResult, bool, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Reconcile")()

	paymentID, found, err := u.gateway.FetchCapturedPayment(ctx, orderID)
	if err != nil {
		return nil, false, domain.Unavailable("Failed to query payment gateway", err, true)
	}
	if !found {
		return nil, false, nil
	}
	res, err := u.redeem(ctx, "", orderID, paymentID, "")
	if err != nil {
		return nil, false, err
	}
	return res, !res.AlreadyRedeemed, nil
}

func (u *paymentUC) History(ctx context.Context, userID string) ([]*model.PaymentRecord, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.History")()
	return u.payments.ListSuccessfulByUser(ctx, repository.NoTX, userID)
}

// redeem turns a pending order into subscription state. ownerID, when set,
// must own the order. Everything happens in one transaction and the
// pending -> success transition is a compare-and-set, so concurrent callers
// grant credits at most once.
func (u *paymentUC) redeem(ctx context.Context, ownerID, orderID, paymentID, signature string) (*RedemptionResult, error) {
	var (
		res  *RedemptionResult
		paid *model.PaymentRecord
	)
	err := u.tm.WithTx(ctx, repository.LedgerWrite, func(ctx context.Context, tx repository.Tx) error {
		rec, err := u.payments.FindByOrderID(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFound("Payment record not found")
			}
			return err
		}
		if ownerID != "" && rec.UserID != ownerID {
			return domain.NotFound("Payment record not found")
		}
		if rec.Succeeded() {
			res, err = u.snapshot(ctx, tx, rec)
			return err
		}

		plan, err := u.catalog.Lookup(rec.PlanID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		ok, err := u.payments.MarkSuccessIfPending(ctx, tx, orderID, paymentID, signature, now)
		if err != nil {
			return err
		}
		if !ok {
			res, err = u.snapshot(ctx, tx, rec)
			return err
		}

		user, err := u.users.FindByID(ctx, tx, rec.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFound("User not found")
			}
			return err
		}
		credits := interviewsToGrant(rec, plan)
		user.Subscription.Grant(plan, credits, now)
		if err := u.users.SaveSubscription(ctx, tx, user.ID, user.Subscription); err != nil {
			return err
		}

		if rec.Promo != nil {
			if err := u.recordPromoUsage(ctx, tx, rec, now); err != nil {
				return err
			}
		}

		rec.Status = model.PaymentStatusSuccess
		rec.PaidAt = &now
		rec.PaymentID = paymentID
		rec.Signature = signature
		paid = rec
		res = &RedemptionResult{
			OrderID:      rec.OrderID,
			PlanID:       plan.ID,
			Granted:      credits,
			Subscription: user.Subscription,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if paid != nil {
		u.afterRedeem(ctx, paid, res)
	}
	return res, nil
}

// recordPromoUsage books the promo against a freshly paid order. FindByCode
// locks the promo row until the redemption commits. Limits reached after the
// order was quoted skip the booking; the order itself is still redeemed.
func (u *paymentUC) recordPromoUsage(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord, now time.Time) error {
	code := rec.Promo.Code
	promo, err := u.promos.FindByCode(ctx, tx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("code", code).Str("order_id", rec.OrderID).Msg("promo removed before redemption; usage not recorded")
			return nil
		}
		return err
	}
	if promo.PerUserLimit > 0 {
		used, err := u.promos.CountUserUsages(ctx, tx, code, rec.UserID)
		if err != nil {
			return err
		}
		if used >= promo.PerUserLimit {
			u.log.Warn().Str("code", code).Str("user_id", rec.UserID).Str("order_id", rec.OrderID).
				Int("used", used).Msg("per-user promo limit reached before redemption; usage not recorded")
			return nil
		}
	}

	counted, err := u.promos.RecordUsage(ctx, tx, model.PromoUsage{
		Code:            code,
		UserID:          rec.UserID,
		OrderID:         rec.OrderID,
		DiscountApplied: rec.Promo.DiscountAmount,
		UsedAt:          now,
	})
	if err != nil {
		return err
	}
	if !counted {
		u.log.Warn().Str("code", code).Str("order_id", rec.OrderID).Msg("promo usage limit reached before redemption; usage logged but not counted")
	}
	return nil
}

func (u *paymentUC) snapshot(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord) (*RedemptionResult, error) {
	user, err := u.users.FindByID(ctx, tx, rec.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("User not found")
		}
		return nil, err
	}
	return &RedemptionResult{
		OrderID:         rec.OrderID,
		PlanID:          rec.PlanID,
		AlreadyRedeemed: true,
		Subscription:    user.Subscription,
	}, nil
}

// afterRedeem runs once the redemption is committed. Nothing here can fail it.
func (u *paymentUC) afterRedeem(ctx context.Context, rec *model.PaymentRecord, res *RedemptionResult) {
	metrics.IncPayment(string(model.PaymentStatusSuccess))
	metrics.AddPaymentRevenue(rec.Currency, rec.Amount.InexactFloat64())
	if rec.Promo != nil {
		metrics.IncPromoRedemption(rec.Promo.Code)
	}

	l := logging.With(logging.WithUserID(ctx, rec.UserID), u.log)
	l.Info().Str("order_id", rec.OrderID).Str("plan_id", res.PlanID).Int("granted", res.Granted).
		Int("remaining", res.Subscription.InterviewsRemaining).Msg("order redeemed")

	if u.notifier == nil {
		return
	}
	u.notifier.Notify(rec.UserID,
		"Payment successful",
		fmt.Sprintf("Your %s plan is active. You have %d interview credits available.", res.Subscription.PlanName, res.Subscription.InterviewsRemaining),
		map[string]any{
			"orderId": rec.OrderID,
			"planId":  res.PlanID,
			"amount":  rec.Amount.String(),
		},
	)
}

func interviewsToGrant(rec *model.PaymentRecord, plan *model.Plan) int {
	if rec.PromoCode() == PromoOverrideCode {
		return PromoOverrideInterviews
	}
	return plan.Interviews
}

func verifyReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "bad_request"
	default:
		return "unknown"
	}
}

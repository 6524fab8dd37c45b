//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepvio-subscription/internal/config"
	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/infra/api"
	infraredis "prepvio-subscription/internal/infra/redis"
	"prepvio-subscription/internal/usecase"
)

const testSecret = "test-jwt-secret"

//
// ---------------- use case stubs ----------------
//

type stubCatalog struct{}

func (stubCatalog) Lookup(planID string) (*model.Plan, error) {
	return nil, domain.NotFound("Invalid planId")
}

func (stubCatalog) All() []model.Plan {
	return []model.Plan{{ID: "monthly", Name: "Monthly", Amount: 79, Duration: model.DurationMonthly, Interviews: 4}}
}

type stubPayments struct {
	createErr  error
	verifyErr  error
	webhookRes *usecase.RedemptionResult
	webhookErr error
	gotUser    string
	gotPromo   string
}

func (s *stubPayments) CreateOrder(ctx context.Context, userID, planID, promoCode string) (*usecase.OrderIntent, error) {
	s.gotUser, s.gotPromo = userID, promoCode
	if s.createErr != nil {
		return nil, s.createErr
	}
	promo := &model.PromoApplication{Code: "SAVE10", DiscountAmount: decimal.RequireFromString("17.9"), FinalAmount: decimal.RequireFromString("161.1")}
	return &usecase.OrderIntent{
		OrderQuote: usecase.OrderQuote{
			PlanID:      planID,
			Pricing:     model.OrderPricing{Kind: model.PricingPlain, OriginalAmount: 179, BaseAmount: 179},
			Promo:       promo,
			FinalAmount: promo.FinalAmount,
		},
		OrderID:     "order_1",
		KeyID:       "rzp_test",
		Currency:    "INR",
		AmountMinor: 16110,
		Receipt:     "rcpt_1",
	}, nil
}

func (s *stubPayments) PreviewPromo(ctx context.Context, userID, planID, code string) (*usecase.OrderQuote, error) {
	return nil, domain.Eligibility(domain.ReasonPromoExpired, "Promo code has expired")
}

func (s *stubPayments) VerifyAndRedeem(ctx context.Context, userID string, in usecase.VerifyInput) (*usecase.RedemptionResult, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &usecase.RedemptionResult{
		OrderID: in.OrderID, PlanID: "monthly", Granted: 4,
		Subscription: model.Subscription{Active: true, PlanID: "monthly", InterviewsTotal: 4, InterviewsRemaining: 4},
	}, nil
}

func (s *stubPayments) RedeemWebhook(ctx context.Context, body []byte, signature string) (*usecase.RedemptionResult, error) {
	return s.webhookRes, s.webhookErr
}

func (s *stubPayments) Reconcile(ctx context.Context, orderID string) (*usecase.RedemptionResult, bool, error) {
	return nil, false, nil
}

func (s *stubPayments) History(ctx context.Context, userID string) ([]*model.PaymentRecord, error) {
	return []*model.PaymentRecord{{OrderID: "order_1", UserID: userID, PlanID: "monthly", Amount: decimal.NewFromInt(79), Status: model.PaymentStatusSuccess}}, nil
}

type stubSubs struct{ err error }

func (s *stubSubs) ConsumeInterviewCredit(ctx context.Context, userID string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

func (s *stubSubs) Status(ctx context.Context, userID string) (*usecase.InterviewStatus, error) {
	return &usecase.InterviewStatus{
		Subscription: model.Subscription{Active: true, PlanID: "monthly", InterviewsTotal: 4, InterviewsUsed: 1, InterviewsRemaining: 3},
		Attempts:     []*model.InterviewAttempt{{ID: "a1", PlanID: "monthly", RemainingAfter: 3}},
	}, nil
}

type stubPromos struct{ created *usecase.CreatePromoInput }

func (s *stubPromos) Evaluate(ctx context.Context, code, userID, planID string, baseAmount int64) (*model.PromoApplication, error) {
	return nil, errors.New("unused")
}

func (s *stubPromos) Create(ctx context.Context, in usecase.CreatePromoInput) (*model.PromoCode, error) {
	s.created = &in
	return &model.PromoCode{Code: "LAUNCH20", DiscountType: model.DiscountPercentage, DiscountValue: decimal.NewFromInt(20), Active: true, PerUserLimit: 1}, nil
}

func (s *stubPromos) Deactivate(ctx context.Context, code string) error {
	if code != "GONE" {
		return domain.NotFound("Promo code not found")
	}
	return nil
}

func (s *stubPromos) Stats(ctx context.Context, code string) (*usecase.PromoStats, error) {
	return &usecase.PromoStats{Code: code, UsageCount: 1, Remaining: -1, TotalDiscount: decimal.NewFromInt(10)}, nil
}

func (s *stubPromos) List(ctx context.Context) ([]*model.PromoCode, error) {
	return []*model.PromoCode{{Code: "A"}, {Code: "B"}}, nil
}

type stubUsers struct{ ensured []string }

func (s *stubUsers) Ensure(ctx context.Context, id, email, name string) (*model.User, error) {
	s.ensured = append(s.ensured, id)
	return &model.User{ID: id, Email: email}, nil
}

type stubStats struct{}

func (stubStats) Revenue(ctx context.Context) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	return decimal.NewFromInt(79), decimal.NewFromInt(258), decimal.NewFromInt(258), nil
}

func (stubStats) ActiveByPlan(ctx context.Context) (map[string]int, error) {
	return map[string]int{"monthly": 1}, nil
}

type stubNotes struct{}

func (stubNotes) List(ctx context.Context, userID string) ([]*model.Notification, error) {
	return []*model.Notification{{ID: "n1", UserID: userID, Title: "Payment successful"}}, nil
}

//
// ---------------- harness ----------------
//

type harness struct {
	srv      http.Handler
	auth     *api.AuthManager
	payments *stubPayments
	subs     *stubSubs
	promos   *stubPromos
	users    *stubUsers
}

func newHarness(t *testing.T, userLimit int) *harness {
	t.Helper()
	logger := zerolog.New(io.Discard)

	mr := miniredis.RunT(t)
	rc := infraredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	h := &harness{
		auth:     api.NewAuthManager(testSecret, "token", []string{"Boss@Prepvio.in"}),
		payments: &stubPayments{},
		subs:     &stubSubs{},
		promos:   &stubPromos{},
		users:    &stubUsers{},
	}
	cfg := config.HTTPConfig{AllowedOrigins: []string{"*"}, RequestTimeout: 5 * time.Second, UserLimitPerMinute: userLimit}
	s, err := api.NewServer(api.Deps{
		Catalog:       stubCatalog{},
		Payments:      h.payments,
		Subscriptions: h.subs,
		Promos:        h.promos,
		Users:         h.users,
		Stats:         stubStats{},
		Notifications: stubNotes{},
	}, h.auth, api.NewIPRateLimiter(1000, 1000), infraredis.NewCheckoutLimiter(rc), cfg, &logger)
	require.NoError(t, err)
	h.srv = s.Handler()
	return h
}

func (h *harness) token(t *testing.T, userID, email, role string) string {
	t.Helper()
	tok, err := h.auth.Mint(userID, email, "", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

//
// ---------------- tests ----------------
//

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t, 30)

	rec, out := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, out = h.do(t, http.MethodGet, "/api/payment/plans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plans := out["plans"].([]any)
	require.Len(t, plans, 1)
	assert.Equal(t, "monthly", plans[0].(map[string]any)["id"])

	rec, _ = h.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t, 30)

	t.Run("missing token", func(t *testing.T) {
		rec, out := h.do(t, http.MethodGet, "/api/payment/history", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, false, out["success"])
	})

	t.Run("forged token", func(t *testing.T) {
		other := api.NewAuthManager("another-secret", "", nil)
		tok, err := other.Mint("u1", "", "", "", time.Hour)
		require.NoError(t, err)
		rec, _ := h.do(t, http.MethodGet, "/api/payment/history", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("cookie token ensures the user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/payment/history", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: h.token(t, "u-cookie", "", "")})
		rec := httptest.NewRecorder()
		h.srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, h.users.ensured, "u-cookie")
	})
}

func TestCreateOrder(t *testing.T) {
	h := newHarness(t, 30)
	tok := h.token(t, "u1", "", "")

	rec, out := h.do(t, http.MethodPost, "/api/payment/create-order", tok, map[string]string{"planId": "premium", "promoCode": "save10"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "u1", h.payments.gotUser)
	assert.Equal(t, "save10", h.payments.gotPromo)
	assert.Equal(t, "order_1", out["orderId"])
	assert.Equal(t, float64(16110), out["amount"])
	pricing := out["pricing"].(map[string]any)
	assert.Equal(t, 17.9, pricing["discountAmount"])
	assert.Equal(t, 161.1, pricing["finalAmount"])
	assert.Equal(t, false, pricing["isUpgrade"])

	rec, out = h.do(t, http.MethodPost, "/api/payment/create-order", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "planId is invalid", out["message"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		fields map[string]any
	}{
		{"validation", domain.Validation("Invalid planId"), http.StatusBadRequest, nil},
		{"not found", domain.NotFound("Invalid planId"), http.StatusNotFound, nil},
		{"promo eligibility", domain.Eligibility(domain.ReasonPromoExhausted, "Promo code usage limit reached"), http.StatusBadRequest,
			map[string]any{"reason": "promoExhausted"}},
		{"conflict", domain.Conflict("dup"), http.StatusConflict, nil},
		{"gateway timeout", domain.Unavailable("Payment gateway timed out", domain.ErrGatewayTimeout, true), http.StatusServiceUnavailable,
			map[string]any{"retryable": true}},
		{"internal", errors.New("db exploded"), http.StatusInternalServerError, map[string]any{"message": "Internal server error"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 30)
			h.payments.createErr = tc.err

			rec, out := h.do(t, http.MethodPost, "/api/payment/create-order", h.token(t, "u1", "", ""), map[string]string{"planId": "monthly"})

			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, false, out["success"])
			for k, v := range tc.fields {
				assert.Equal(t, v, out[k], k)
			}
		})
	}
}

func TestConsumeInterview(t *testing.T) {
	h := newHarness(t, 30)
	tok := h.token(t, "u1", "", "")

	for _, path := range []string{"/api/payment/use-interview", "/api/payment/consume-interview"} {
		rec, out := h.do(t, http.MethodPost, path, tok, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, float64(3), out["remaining"])
	}

	h.subs.err = domain.Eligibility(domain.ReasonRequiresPayment, "No active subscription")
	rec, out := h.do(t, http.MethodPost, "/api/payment/consume-interview", tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, true, out["requiresPayment"])
	assert.Nil(t, out["needsUpgrade"])

	h.subs.err = domain.Eligibility(domain.ReasonNeedsUpgrade, "No interviews remaining")
	rec, out = h.do(t, http.MethodPost, "/api/payment/use-interview", tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, true, out["needsUpgrade"])
}

func TestReadRoutes(t *testing.T) {
	h := newHarness(t, 30)
	tok := h.token(t, "u1", "", "")

	rec, out := h.do(t, http.MethodGet, "/api/payment/interview-status", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["expired"])
	assert.Len(t, out["recentAttempts"], 1)
	assert.Equal(t, float64(3), out["subscription"].(map[string]any)["interviewsRemaining"])

	rec, out = h.do(t, http.MethodGet, "/api/payment/history", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["payments"], 1)

	rec, out = h.do(t, http.MethodGet, "/api/notifications", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["notifications"], 1)

	rec, out = h.do(t, http.MethodPost, "/api/promo/validate", tok, map[string]string{"code": "OLD", "planId": "monthly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "promoExpired", out["reason"])
}

func TestVerify(t *testing.T) {
	h := newHarness(t, 30)
	tok := h.token(t, "u1", "", "")

	rec, out := h.do(t, http.MethodPost, "/api/payment/verify", tok, map[string]string{"orderId": "order_1", "paymentId": "pay_1", "signature": "sig"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), out["granted"])

	rec, _ = h.do(t, http.MethodPost, "/api/payment/verify", tok, map[string]string{"orderId": "order_1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.payments.verifyErr = domain.Integrity("Invalid payment signature")
	rec, out = h.do(t, http.MethodPost, "/api/payment/verify", tok, map[string]string{"orderId": "order_1", "paymentId": "pay_1", "signature": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid payment signature", out["message"])
}

func TestWebhook(t *testing.T) {
	h := newHarness(t, 30)

	h.payments.webhookRes = &usecase.RedemptionResult{OrderID: "order_1"}
	rec, out := h.do(t, http.MethodPost, "/api/payment/webhook", "", map[string]string{"event": "payment.captured"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["redeemed"])

	h.payments.webhookRes, h.payments.webhookErr = nil, domain.NotFound("Payment record not found")
	rec, out = h.do(t, http.MethodPost, "/api/payment/webhook", "", map[string]string{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["redeemed"])

	h.payments.webhookErr = domain.Integrity("Invalid webhook signature")
	rec, _ = h.do(t, http.MethodPost, "/api/payment/webhook", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t, 30)
	user := h.token(t, "u1", "someone@example.com", "")
	admin := h.token(t, "a1", "", "admin")
	byEmail := h.token(t, "a2", "boss@prepvio.in", "")

	rec, _ := h.do(t, http.MethodGet, "/api/promo/all", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out := h.do(t, http.MethodGet, "/api/promo/all", byEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["promos"], 2)

	rec, out = h.do(t, http.MethodPost, "/api/promo/create", admin, map[string]any{"code": "launch20", "discountType": "percentage", "discountValue": 20})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "LAUNCH20", out["promo"].(map[string]any)["code"])
	assert.Equal(t, "launch20", h.promos.created.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/promo/create", admin, map[string]any{"code": "x", "discountType": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPatch, "/api/promo/deactivate/GONE", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(t, http.MethodPatch, "/api/promo/deactivate/MISSING", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = h.do(t, http.MethodGet, "/api/promo/stats/TEN", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := out["stats"].(map[string]any)
	assert.Equal(t, "TEN", stats["code"])
	assert.Nil(t, stats["remaining"])

	rec, out = h.do(t, http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(258), out["revenue"].(map[string]any)["month"])
}

func TestUserRateLimit(t *testing.T) {
	h := newHarness(t, 2)
	tok := h.token(t, "u1", "", "")
	body := map[string]string{"planId": "monthly"}

	for i := 0; i < 2; i++ {
		rec, _ := h.do(t, http.MethodPost, "/api/payment/create-order", tok, body)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := h.do(t, http.MethodPost, "/api/payment/create-order", tok, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// other users and other routes keep their own window
	rec, _ = h.do(t, http.MethodPost, "/api/payment/create-order", h.token(t, "u2", "", ""), body)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/api/payment/verify", tok, map[string]string{"orderId": "o", "paymentId": "p", "signature": "s"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPRateLimiter(t *testing.T) {
	rl := api.NewIPRateLimiter(1, 1)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.1.1.1"))
	assert.Equal(t, http.StatusNoContent, send("2.2.2.2"))
}

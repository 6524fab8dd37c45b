//go:build !integration

package usecase_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/adapter"
	"prepvio-subscription/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func testPlans() []model.Plan {
	return []model.Plan{
		{ID: "free", Name: "Free", Amount: 0, Duration: model.DurationLifetime, Interviews: 1},
		{ID: "monthly", Name: "Monthly", Amount: 79, Duration: model.DurationMonthly, Interviews: 4},
		{ID: "premium", Name: "Premium", Amount: 179, Duration: model.DurationMonthly, Interviews: 10},
		{ID: "yearly", Name: "Yearly", Amount: 999, Duration: model.DurationYearly, Interviews: 25},
	}
}

// =============================
// In-memory store
// =============================

// memStore backs every repository port with maps guarded by one mutex.
// Conditional updates are evaluated under the lock, like a single SQL statement.
type memStore struct {
	mu            sync.Mutex
	users         map[string]model.User
	payments      map[string]model.PaymentRecord // by order id
	promos        map[string]model.PromoCode
	usages        []model.PromoUsage
	attempts      []model.InterviewAttempt
	notifications []model.Notification

	FindUserErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]model.User),
		payments: make(map[string]model.PaymentRecord),
		promos:   make(map[string]model.PromoCode),
	}
}

func (s *memStore) putUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) user(id string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memStore) putPromo(p model.PromoCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promos[p.Code] = p
}

func (s *memStore) promo(code string) model.PromoCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promos[code]
}

func (s *memStore) payment(orderID string) model.PaymentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[orderID]
}

func (s *memStore) usagesOf(code, userID string) []model.PromoUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PromoUsage
	for _, u := range s.usages {
		if u.Code == code && u.UserID == userID {
			out = append(out, u)
		}
	}
	return out
}

// ---- UserRepository ----

type memUserRepo struct{ s *memStore }

var _ repository.UserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) Ensure(ctx context.Context, tx repository.Tx, u *model.User) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cur, ok := r.s.users[u.ID]; ok {
		return &cur, nil
	}
	r.s.users[u.ID] = *u
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FindUserErr != nil {
		return nil, r.s.FindUserErr
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *memUserRepo) SaveSubscription(ctx context.Context, tx repository.Tx, userID string, sub model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Subscription = sub
	r.s.users[userID] = u
	return nil
}

func (r *memUserRepo) Deactivate(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok || !u.Subscription.Active {
		return false, nil
	}
	u.Subscription.Deactivate()
	r.s.users[userID] = u
	return true, nil
}

func (r *memUserRepo) ConsumeCredit(ctx context.Context, tx repository.Tx, userID string, now time.Time) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok || u.Subscription.Expired(now) || !u.Subscription.Consume() {
		return 0, false, nil
	}
	r.s.users[userID] = u
	return u.Subscription.InterviewsRemaining, true, nil
}

func (r *memUserRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int{}
	for _, u := range r.s.users {
		if u.Subscription.Active {
			out[u.Subscription.PlanID]++
		}
	}
	return out, nil
}

// ---- PaymentRepository ----

type memPaymentRepo struct {
	s *memStore

	CreateErr error
}

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

func (r *memPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.payments[p.OrderID]; dup {
		return domain.ErrAlreadyExists
	}
	r.s.payments[p.OrderID] = *p
	return nil
}

func (r *memPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *memPaymentRepo) MarkSuccessIfPending(ctx context.Context, tx repository.Tx, orderID, paymentID, signature string, paidAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[orderID]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusSuccess
	p.PaymentID = paymentID
	p.Signature = signature
	p.PaidAt = &paidAt
	r.s.payments[orderID] = p
	return true, nil
}

func (r *memPaymentRepo) ListSuccessfulByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range r.s.payments {
		if p.UserID == userID && p.Succeeded() {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(*out[j].PaidAt) })
	return out, nil
}

func (r *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range r.s.payments {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := p
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPaymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, p := range r.s.payments {
		if p.Succeeded() {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

// ---- PromoRepository ----

type memPromoRepo struct{ s *memStore }

var _ repository.PromoRepository = (*memPromoRepo)(nil)

func (r *memPromoRepo) Create(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.promos[p.Code]; dup {
		return domain.ErrAlreadyExists
	}
	r.s.promos[p.Code] = *p
	return nil
}

func (r *memPromoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promos[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *memPromoRepo) List(ctx context.Context, tx repository.Tx) ([]*model.PromoCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.PromoCode, 0, len(r.s.promos))
	for _, p := range r.s.promos {
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memPromoRepo) Deactivate(ctx context.Context, tx repository.Tx, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promos[code]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = false
	r.s.promos[code] = p
	return nil
}

func (r *memPromoRepo) CountUserUsages(ctx context.Context, tx repository.Tx, code, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, u := range r.s.usages {
		if u.Code == code && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memPromoRepo) RecordUsage(ctx context.Context, tx repository.Tx, u model.PromoUsage) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promos[u.Code]
	if !ok {
		return false, domain.ErrNotFound
	}
	r.s.usages = append(r.s.usages, u)
	if p.Exhausted() {
		return false, nil
	}
	p.UsageCount++
	r.s.promos[u.Code] = p
	return true, nil
}

func (r *memPromoRepo) ListUsages(ctx context.Context, tx repository.Tx, code string) ([]model.PromoUsage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.PromoUsage
	for _, u := range r.s.usages {
		if u.Code == code {
			out = append(out, u)
		}
	}
	return out, nil
}

// ---- InterviewRepository ----

type memInterviewRepo struct{ s *memStore }

var _ repository.InterviewRepository = (*memInterviewRepo)(nil)

func (r *memInterviewRepo) Record(ctx context.Context, tx repository.Tx, a *model.InterviewAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.attempts = append(r.s.attempts, *a)
	return nil
}

func (r *memInterviewRepo) ListRecent(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.InterviewAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.InterviewAttempt
	for i := len(r.s.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if a := r.s.attempts[i]; a.UserID == userID {
			out = append(out, &a)
		}
	}
	return out, nil
}

// ---- NotificationRepository ----

type memNotificationRepo struct{ s *memStore }

var _ repository.NotificationRepository = (*memNotificationRepo)(nil)

func (r *memNotificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r *memNotificationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Notification
	for i := len(r.s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if n := r.s.notifications[i]; n.UserID == userID {
			out = append(out, &n)
		}
	}
	return out, nil
}

// ---- TransactionManager ----

type MockTxManager struct {
	calls int
	last  pgx.TxOptions
	mu    sync.Mutex
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.calls++
	m.last = txOpt
	m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

const testGatewaySecret = "test-secret"

func sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testGatewaySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// MockPaymentGateway signs with testGatewaySecret and hands out sequential order ids.
type MockPaymentGateway struct {
	mu     sync.Mutex
	seq    int
	Orders []adapter.GatewayOrder

	CreateOrderFunc  func(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error)
	ParseWebhookFunc func(body []byte, signature string) (*adapter.WebhookEvent, error)
	Captured         map[string]string // order id -> payment id
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string  { return "mock" }
func (g *MockPaymentGateway) KeyID() string { return "key_test" }

func (g *MockPaymentGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error) {
	if g.CreateOrderFunc != nil {
		return g.CreateOrderFunc(ctx, amountMinor, currency, receipt, notes)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := adapter.GatewayOrder{
		OrderID:     fmt.Sprintf("order_%d", g.seq),
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
	}
	g.Orders = append(g.Orders, o)
	return o, nil
}

func (g *MockPaymentGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(sign(orderID, paymentID)), []byte(signature))
}

func (g *MockPaymentGateway) ParseWebhook(body []byte, signature string) (*adapter.WebhookEvent, error) {
	if g.ParseWebhookFunc != nil {
		return g.ParseWebhookFunc(body, signature)
	}
	return nil, domain.ErrInvalidSignature
}

func (g *MockPaymentGateway) FetchCapturedPayment(ctx context.Context, orderID string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.Captured[orderID]
	return id, ok, nil
}

// MockNotifier records every notification.
type MockNotifier struct {
	mu   sync.Mutex
	Sent []model.Notification
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (n *MockNotifier) Notify(userID, title, message string, meta map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, model.Notification{UserID: userID, Title: title, Message: message, Meta: meta})
}

func (n *MockNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Sent)
}

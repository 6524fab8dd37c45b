package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for local development.
// Signatures are HMACs over the configured secret, so clients can forge
// valid checkouts with CheckoutSignature.
type NoopPaymentGateway struct {
	secret string

	mu     sync.Mutex
	seq    int64
	orders map[string]adapter.GatewayOrder
	paid   map[string]string // order id -> payment id
}

func NewNoopPaymentGateway(secret string) *NoopPaymentGateway {
	if secret == "" {
		secret = "noop-secret"
	}
	return &NoopPaymentGateway{
		secret: secret,
		orders: make(map[string]adapter.GatewayOrder),
		paid:   make(map[string]string),
	}
}

func (g *NoopPaymentGateway) Name() string  { return "noop" }
func (g *NoopPaymentGateway) KeyID() string { return "rzp_noop" }

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return adapter.GatewayOrder{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := adapter.GatewayOrder{
		OrderID:     fmt.Sprintf("order_noop_%d", g.seq),
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
	}
	g.orders[o.OrderID] = o
	return o, nil
}

func (g *NoopPaymentGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if !checkoutSignatureValid(g.secret, orderID, paymentID, signature) {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[orderID]; ok {
		g.paid[orderID] = paymentID
	}
	return true
}

func (g *NoopPaymentGateway) ParseWebhook(body []byte, signature string) (*adapter.WebhookEvent, error) {
	if !webhookSignatureValid(g.secret, body, signature) {
		return nil, domain.ErrInvalidSignature
	}
	var ev struct {
		Event     string `json:"event"`
		OrderID   string `json:"orderId"`
		PaymentID string `json:"paymentId"`
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return &adapter.WebhookEvent{
		Event:     ev.Event,
		OrderID:   ev.OrderID,
		PaymentID: ev.PaymentID,
		Captured:  ev.Event == "payment.captured",
	}, nil
}

func (g *NoopPaymentGateway) FetchCapturedPayment(ctx context.Context, orderID string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.paid[orderID]
	return id, ok, nil
}

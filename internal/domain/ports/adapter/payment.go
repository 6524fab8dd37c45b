package adapter

import (
	"context"
)

// GatewayOrder is the provider side order created for a checkout.
type GatewayOrder struct {
	OrderID     string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

// WebhookEvent is the part of a provider webhook the ledger cares about.
type WebhookEvent struct {
	Event     string
	OrderID   string
	PaymentID string
	Captured  bool
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string
	// KeyID is the public key the checkout widget is opened with.
	KeyID() string

	// CreateOrder registers an order for amountMinor (paise) and returns its id.
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (GatewayOrder, error)
	// VerifyPaymentSignature checks hmac_sha256(secret, orderID|paymentID) in constant time.
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	// ParseWebhook verifies the body signature and decodes the event.
	ParseWebhook(body []byte, signature string) (*WebhookEvent, error)
	// FetchCapturedPayment returns the captured payment id for orderID, if any.
	FetchCapturedPayment(ctx context.Context, orderID string) (paymentID string, found bool, err error)
}

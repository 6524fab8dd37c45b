// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements adapter.PaymentGateway with the Razorpay Go SDK.
type RazorpayGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	client        *razorpay.Client
}

// NewRazorpayGateway builds the SDK client. baseURL is only set against sandboxes and fakes.
func NewRazorpayGateway(keyID, keySecret, webhookSecret, baseURL string) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay key id or secret empty")
	}
	if webhookSecret == "" {
		webhookSecret = keySecret
	}
	client := razorpay.NewClient(keyID, keySecret)
	if baseURL != "" {
		razorpay.Request.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &RazorpayGateway{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		client:        client,
	}, nil
}

func (g *RazorpayGateway) Name() string  { return "razorpay" }
func (g *RazorpayGateway) KeyID() string { return g.keyID }

// CreateOrder calls Order.Create. The SDK takes no context, so ctx only bounds how long we wait.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error) {
	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := withContext(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Create(data, nil)
	})
	if err != nil {
		return adapter.GatewayOrder{}, fmt.Errorf("razorpay create order: %w", err)
	}
	id := str(body, "id")
	if id == "" {
		return adapter.GatewayOrder{}, errors.New("razorpay: order id missing in response")
	}
	return adapter.GatewayOrder{
		OrderID:     id,
		AmountMinor: minor(body["amount"]),
		Currency:    str(body, "currency"),
		Receipt:     str(body, "receipt"),
		Status:      str(body, "status"),
	}, nil
}

func (g *RazorpayGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return checkoutSignatureValid(g.keySecret, orderID, paymentID, signature)
}

// ParseWebhook handles payment.captured and order.paid.
func (g *RazorpayGateway) ParseWebhook(body []byte, signature string) (*adapter.WebhookEvent, error) {
	if !webhookSignatureValid(g.webhookSecret, body, signature) {
		return nil, domain.ErrInvalidSignature
	}
	var in struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
					Status  string `json:"status"`
				} `json:"entity"`
			} `json:"payment"`
			Order struct {
				Entity struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"entity"`
			} `json:"order"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("razorpay webhook: %w", err)
	}

	p := in.Payload.Payment.Entity
	ev := &adapter.WebhookEvent{Event: in.Event, OrderID: p.OrderID, PaymentID: p.ID}
	if ev.OrderID == "" {
		ev.OrderID = in.Payload.Order.Entity.ID
	}
	switch in.Event {
	case "payment.captured":
		ev.Captured = p.Status == "captured"
	case "order.paid":
		ev.Captured = p.ID != ""
	}
	return ev, nil
}

// FetchCapturedPayment lists the order's payments and returns the first captured one.
func (g *RazorpayGateway) FetchCapturedPayment(ctx context.Context, orderID string) (string, bool, error) {
	body, err := withContext(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Payments(orderID, nil, nil)
	})
	if err != nil {
		return "", false, fmt.Errorf("razorpay order payments: %w", err)
	}
	items, _ := body["items"].([]interface{})
	for _, it := range items {
		p, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		if str(p, "status") == "captured" {
			return str(p, "id"), true, nil
		}
	}
	return "", false, nil
}

// withContext runs a blocking SDK call and gives up when ctx is done.
// The abandoned call is still bounded by the SDK client's own timeout.
func withContext(ctx context.Context, call func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := call()
		done <- result{body, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.body, r.err
	}
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func minor(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

func checkoutSignatureValid(secret, orderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, secret)
}

func webhookSignatureValid(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, secret)
}

package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Card is a payer card sent on host-to-host payments
type Card struct {
	PAN      string `json:"pan"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVV      string `json:"cvv"`
	Holder   string `json:"holder,omitempty"`
}

// PaymentRequest creates a payment or a payout. Amount is in minor units.
type PaymentRequest struct {
	OrderID     string                 `json:"order_id"`
	Amount      int64                  `json:"amount"`
	Currency    string                 `json:"currency"`
	Card        *Card                  `json:"card,omitempty"`
	Customer    string                 `json:"customer,omitempty"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// Payment is the business API view of a payment, payout or refund
type Payment struct {
	Token         string `json:"token"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	ProcessingURL string `json:"processing_url,omitempty"`
}

// BusinessClient drives the merchant-facing API, authenticated as one merchant
type BusinessClient struct {
	client     *client
	merchantID int64
	secret     string
}

// Token signs a short-lived merchant bearer token
func (c *BusinessClient) Token() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(c.merchantID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secret))
}

func (c *BusinessClient) call(ctx context.Context, method, path string, payload interface{}) (*Payment, error) {
	token, err := c.Token()
	if err != nil {
		return nil, err
	}

	var b *body
	if payload != nil {
		if b, err = jsonBody(payload); err != nil {
			return nil, err
		}
	}

	raw, err := c.client.send(ctx, method, path, map[string]string{"Authorization": "Bearer " + token}, b)
	if err != nil {
		return nil, err
	}

	var payment Payment
	if err := decode(raw, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreatePayment starts a pay operation
func (c *BusinessClient) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	payment, err := c.call(ctx, http.MethodPost, "/api/v1/payments", req)
	if err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}
	return payment, nil
}

// CreatePayout starts a payout operation
func (c *BusinessClient) CreatePayout(ctx context.Context, req PaymentRequest) (*Payment, error) {
	payment, err := c.call(ctx, http.MethodPost, "/api/v1/payouts", req)
	if err != nil {
		return nil, fmt.Errorf("CreatePayout: %w", err)
	}
	return payment, nil
}

// Refund returns amount, in minor units, of the payment identified by token
func (c *BusinessClient) Refund(ctx context.Context, token string, amount int64) (*Payment, error) {
	payment, err := c.call(ctx, http.MethodPost, "/api/v1/payments/"+token+"/refund", map[string]interface{}{
		"amount": amount,
	})
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}
	return payment, nil
}

// GetPayment fetches the current state of a payment
func (c *BusinessClient) GetPayment(ctx context.Context, token string) (*Payment, error) {
	payment, err := c.call(ctx, http.MethodGet, "/api/v1/payments/"+token, nil)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: %w", err)
	}
	return payment, nil
}

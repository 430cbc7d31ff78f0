package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrProvider wraps every failure reported by a payment provider.
var ErrProvider = errors.New("payment provider error")

type OrderRequest struct {
	Amount   int64 // paise
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Provider interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	// KeyID is the public key the checkout surface is opened with.
	KeyID() string
}

// SignPayment returns the checkout signature for an order/payment pair.
func SignPayment(orderID, paymentID, secret string) string {
	return sign([]byte(orderID+"|"+paymentID), secret)
}

func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	return verify(SignPayment(orderID, paymentID, secret), signature)
}

func SignWebhook(body []byte, secret string) string {
	return sign(body, secret)
}

func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	return verify(SignWebhook(body, secret), signature)
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(expected, got string) bool {
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(got))
}

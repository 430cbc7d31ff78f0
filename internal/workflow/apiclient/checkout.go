package apiclient

import (
	"context"
	"strings"

	"filingdesk/internal/app/payment"
	"filingdesk/internal/workflow"

	"github.com/google/uuid"
)

// DevCheckout completes every checkout at once with a payment signed by the
// server's development key secret. It only works against the dev provider.
type DevCheckout struct {
	KeySecret string
}

func (d DevCheckout) Open(_ context.Context, order workflow.Order) (<-chan workflow.CheckoutResult, error) {
	paymentID := "pay_dev_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	ch := make(chan workflow.CheckoutResult, 1)
	ch <- workflow.CheckoutResult{
		PaymentID: paymentID,
		Signature: payment.SignPayment(order.OrderID, paymentID, d.KeySecret),
	}
	close(ch)
	return ch, nil
}

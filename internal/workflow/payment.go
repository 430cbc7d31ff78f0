package workflow

import (
	"context"
	"time"

	"filingdesk/internal/app/metrics"
	"filingdesk/internal/app/status"

	"github.com/sirupsen/logrus"
)

// PaymentGateway opens orders, waits on the checkout and completes the
// record once the charge has happened.
type PaymentGateway struct {
	orders Orders
	store  Store
	log    *logrus.Entry
	// abandonAfter bounds the checkout wait. Zero waits until ctx ends.
	abandonAfter time.Duration
}

func NewPaymentGateway(orders Orders, store Store, abandonAfter time.Duration, log *logrus.Entry) *PaymentGateway {
	return &PaymentGateway{
		orders:       orders,
		store:        store,
		log:          log,
		abandonAfter: abandonAfter,
	}
}

// CreateOrder asks the server for an order at the plan's table price.
func (g *PaymentGateway) CreateOrder(ctx context.Context, submissionID string) (Order, error) {
	if submissionID == "" {
		return Order{}, &Error{Kind: KindOrderCreation, Op: "create order", Err: ErrNoSubmission}
	}
	order, err := g.orders.CreateOrder(ctx, submissionID)
	if err != nil {
		g.log.WithField("submission_id", submissionID).WithError(err).Warn("order creation failed")
		return Order{}, &Error{Kind: KindOrderCreation, Op: "create order", SubmissionID: submissionID, Err: err}
	}
	return order, nil
}

// Checkout opens the surface and waits for its single result. This is the
// only point where the workflow suspends.
func (g *PaymentGateway) Checkout(ctx context.Context, submissionID string, order Order, surface CheckoutSurface) (CheckoutResult, error) {
	results, err := surface.Open(ctx, order)
	if err != nil {
		return CheckoutResult{}, &Error{Kind: KindCheckoutLoad, Op: "checkout", SubmissionID: submissionID, OrderID: order.OrderID, Amount: order.Amount, Err: err}
	}

	var timeout <-chan time.Time
	if g.abandonAfter > 0 {
		timer := time.NewTimer(g.abandonAfter)
		defer timer.Stop()
		timeout = timer.C
	}

	abandoned := func(cause error) error {
		g.log.WithFields(logrus.Fields{"submission_id": submissionID, "order_id": order.OrderID}).Info("checkout abandoned")
		return &Error{Kind: KindCheckoutAbandoned, Op: "checkout", SubmissionID: submissionID, OrderID: order.OrderID, Amount: order.Amount, Err: cause}
	}

	select {
	case res, ok := <-results:
		if !ok || res.PaymentID == "" {
			return CheckoutResult{}, abandoned(ErrCheckoutClosed)
		}
		return res, nil
	case <-ctx.Done():
		return CheckoutResult{}, abandoned(ctx.Err())
	case <-timeout:
		return CheckoutResult{}, abandoned(context.DeadlineExceeded)
	}
}

// Complete records the payment and finalizes. Any failure here happens
// after the charge and is reported as KindFinalizePostPayment.
func (g *PaymentGateway) Complete(ctx context.Context, submissionID string, order Order, res CheckoutResult) (*Record, error) {
	recorded, err := g.store.RecordPayment(ctx, submissionID, order, res)
	if err != nil {
		return nil, g.postPayment(submissionID, order, res, "record payment", err)
	}
	rec, err := g.store.Finalize(ctx, submissionID, res.PaymentID, recordedAmount(recorded, order))
	if err != nil {
		return nil, g.postPayment(submissionID, order, res, "finalize", err)
	}
	return rec, nil
}

// RetryFinalize replays completion with the same payment. It never opens
// an order.
func (g *PaymentGateway) RetryFinalize(ctx context.Context, submissionID string, order Order, res CheckoutResult) (*Record, error) {
	rec, err := g.store.Get(ctx, submissionID)
	if err != nil {
		return nil, g.postPayment(submissionID, order, res, "retry finalize", err)
	}
	switch rec.Status {
	case status.Submitted:
		return rec, nil
	case status.PaymentSuccessful:
		rec, err = g.store.Finalize(ctx, submissionID, res.PaymentID, recordedAmount(rec, order))
		if err != nil {
			return nil, g.postPayment(submissionID, order, res, "retry finalize", err)
		}
		return rec, nil
	}
	return g.Complete(ctx, submissionID, order, res)
}

// recordedAmount is the amount the server stored with the payment. The
// client-held order amount is only a fallback.
func recordedAmount(rec *Record, order Order) int64 {
	if rec != nil && rec.Payment != nil && rec.Payment.Amount > 0 {
		return rec.Payment.Amount
	}
	return order.Amount
}

func (g *PaymentGateway) postPayment(submissionID string, order Order, res CheckoutResult, op string, err error) error {
	metrics.FinalizePostPaymentFailures.Inc()
	g.log.WithFields(logrus.Fields{
		"submission_id": submissionID,
		"order_id":      order.OrderID,
		"payment_id":    res.PaymentID,
		"amount":        order.Amount,
	}).WithError(err).Error("payment captured but submission not finalized")

	return &Error{
		Kind:         KindFinalizePostPayment,
		Op:           op,
		SubmissionID: submissionID,
		OrderID:      order.OrderID,
		PaymentID:    res.PaymentID,
		Amount:       order.Amount,
		Err:          err,
	}
}

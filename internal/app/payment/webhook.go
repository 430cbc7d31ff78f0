package payment

// WebhookEvent is the subset of a provider webhook the server consumes.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID       string `json:"id"`
				OrderID  string `json:"order_id"`
				Amount   int64  `json:"amount"`
				Currency string `json:"currency"`
				Status   string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
)

// Captured reports whether the event confirms a successful charge.
func (e WebhookEvent) Captured() bool {
	return (e.Event == EventPaymentCaptured || e.Event == EventOrderPaid) &&
		e.Payload.Payment.Entity.ID != "" && e.Payload.Payment.Entity.OrderID != ""
}

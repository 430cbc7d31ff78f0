package ds

import "time"

const (
	OrderCreated    = "created"
	OrderPaid       = "paid"
	OrderSuperseded = "superseded"
	// OrderOrphaned is a captured order whose submission could not accept
	// the payment. It needs a refund or manual reconciliation.
	OrderOrphaned = "paid_orphan"
)

// PaymentOrder is an order opened at the payment provider for a submission.
type PaymentOrder struct {
	ID           uint      `gorm:"primaryKey"`
	OrderID      string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	SubmissionID string    `gorm:"type:varchar(36);not null;index"`
	Amount       int64     `gorm:"not null"` // paise
	Currency     string    `gorm:"type:varchar(3);not null"`
	Status       string    `gorm:"type:varchar(16);not null"`
	PaymentID    *string   `gorm:"type:varchar(64);default:null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

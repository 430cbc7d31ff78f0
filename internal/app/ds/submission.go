package ds

import (
	"time"

	"filingdesk/internal/app/status"

	"gorm.io/datatypes"
)

// Submission is one filing attempt. The primary key is assigned on first
// draft creation and never changes.
type Submission struct {
	ID             string                                `gorm:"type:varchar(36);primaryKey"`
	OwnerID        uint                                  `gorm:"not null;uniqueIndex:idx_owner_idem"`
	IdempotencyKey string                                `gorm:"type:varchar(64);not null;uniqueIndex:idx_owner_idem"`
	PlanKey        string                                `gorm:"type:varchar(32);not null"`
	Status         status.Status                         `gorm:"type:varchar(24);not null;index"`
	FormSnapshot   datatypes.JSONType[map[string]string] `gorm:"not null"`
	OrderID        *string                               `gorm:"type:varchar(64);default:null"`
	PaymentID      *string                               `gorm:"type:varchar(64);default:null"`
	Amount         *int64                                `gorm:"default:null"` // paise, set with PaymentID
	Currency       string                                `gorm:"type:varchar(3);default:'INR'"`
	FailureReason  string                                `gorm:"type:varchar(64)"`
	CreatedAt      time.Time                             `gorm:"not null"`
	UpdatedAt      time.Time                             `gorm:"not null;index"`
	SubmittedAt    *time.Time                            `gorm:"default:null"`

	Owner     User                 `gorm:"foreignKey:OwnerID"`
	Documents []SubmissionDocument `gorm:"foreignKey:SubmissionID"`
}

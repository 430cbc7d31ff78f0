package workflow

import (
	"context"
	"time"

	"filingdesk/internal/app/status"
)

// Step is a screen of the filing wizard.
type Step int

const (
	StepDetails Step = iota
	StepDocuments
	StepReview
	StepPayment
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "DETAILS"
	case StepDocuments:
		return "DOCUMENTS"
	case StepReview:
		return "REVIEW"
	case StepPayment:
		return "PAYMENT"
	case StepSuccess:
		return "SUCCESS"
	}
	return "UNKNOWN"
}

type DocumentRef struct {
	FileURL    string
	FileID     string
	UploadedAt time.Time
}

type PaymentRef struct {
	OrderID   string
	PaymentID string
	Amount    int64
}

// Record mirrors the server-side submission.
type Record struct {
	ID        string
	Status    status.Status
	PlanKey   string
	Form      map[string]string
	Documents map[string]DocumentRef
	Payment   *PaymentRef
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Form = make(map[string]string, len(r.Form))
	for k, v := range r.Form {
		out.Form[k] = v
	}
	out.Documents = make(map[string]DocumentRef, len(r.Documents))
	for k, v := range r.Documents {
		out.Documents[k] = v
	}
	if r.Payment != nil {
		p := *r.Payment
		out.Payment = &p
	}
	return &out
}

type File struct {
	Name string
	Data []byte
}

// StoredFile is returned by phase one of a document upload.
type StoredFile struct {
	FileURL      string
	FileID       string
	OriginalName string
}

type Order struct {
	OrderID  string
	Amount   int64
	Currency string
	// KeyID is the public key the checkout is opened with.
	KeyID string
}

type CheckoutResult struct {
	PaymentID string
	Signature string
}

type Identity struct {
	UserID uint
	Email  string
	Phone  string
}

// Store persists the submission record.
type Store interface {
	Create(ctx context.Context, idempotencyKey, planKey string, fields map[string]string) (*Record, error)
	Update(ctx context.Context, id string, fields map[string]string) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	LinkDocument(ctx context.Context, id, key string, file StoredFile) error
	RecordPayment(ctx context.Context, id string, order Order, result CheckoutResult) (*Record, error)
	Finalize(ctx context.Context, id, paymentID string, amount int64) (*Record, error)
}

// Storage receives raw document bytes.
type Storage interface {
	Upload(ctx context.Context, data []byte, originalName, category string) (StoredFile, error)
}

// Orders opens payment orders. The amount is resolved server-side.
type Orders interface {
	CreateOrder(ctx context.Context, submissionID string) (Order, error)
}

type IdentitySource interface {
	Identity(ctx context.Context) (Identity, error)
}

// CheckoutSurface is the external payment window. The returned channel
// yields at most one result; it may never yield if the user walks away.
type CheckoutSurface interface {
	Open(ctx context.Context, order Order) (<-chan CheckoutResult, error)
}

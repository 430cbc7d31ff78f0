package dto

import "time"

// ============ Common ============

type ErrorResponse struct {
	Status  string            `json:"status"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ============ Plans ============

type PlanResponse struct {
	Key               string   `json:"key"`
	Title             string   `json:"title"`
	Amount            int64    `json:"amount"` // paise, advisory
	Currency          string   `json:"currency"`
	RequiredDocuments []string `json:"required_documents"`
	OptionalDocuments []string `json:"optional_documents"`
	RequiredFields    []string `json:"required_fields"`
}

type PlanListResponse struct {
	Plans []PlanResponse `json:"plans"`
	Total int            `json:"total"`
}

// ============ Submissions ============

type CreateSubmissionRequest struct {
	PlanKey string            `json:"plan_key" binding:"required"`
	Fields  map[string]string `json:"fields" binding:"required"`
}

type UpdateSubmissionRequest struct {
	Fields map[string]string `json:"fields" binding:"required"`
}

type DocumentResponse struct {
	FileURL    string    `json:"file_url"`
	FileID     string    `json:"file_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type PaymentRefResponse struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	Currency  string `json:"currency"`
}

type SubmissionResponse struct {
	ID            string                      `json:"id"`
	Status        string                      `json:"status"`
	PlanKey       string                      `json:"plan_key"`
	Form          map[string]string           `json:"form"`
	Documents     map[string]DocumentResponse `json:"documents"`
	Payment       *PaymentRefResponse         `json:"payment,omitempty"`
	FailureReason string                      `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	SubmittedAt   *time.Time                  `json:"submitted_at,omitempty"`
}

type SubmissionListResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
	Total       int                  `json:"total"`
}

// ============ Documents ============

type FileResponse struct {
	FileURL      string `json:"file_url"`
	FileID       string `json:"file_id"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

type LinkDocumentRequest struct {
	FileURL string `json:"file_url" binding:"required,url"`
	FileID  string `json:"file_id"`
}

// ============ Payment ============

type OrderResponse struct {
	SubmissionID string `json:"submission_id"`
	OrderID      string `json:"order_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	KeyID        string `json:"key_id"`
	Reused       bool   `json:"reused"`
}

type ConfirmPaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type FinalizeRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
}

type StuckSubmissionResponse struct {
	ID        string    `json:"id"`
	OwnerID   uint      `json:"owner_id"`
	PlanKey   string    `json:"plan_key"`
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrphanPaymentResponse struct {
	SubmissionID string    `json:"submission_id"`
	OrderID      string    `json:"order_id"`
	PaymentID    string    `json:"payment_id"`
	Amount       int64     `json:"amount"`
	CapturedAt   time.Time `json:"captured_at"`
}

type StuckListResponse struct {
	Submissions []StuckSubmissionResponse `json:"submissions"`
	Total       int                       `json:"total"`
	// Orphans are captured payments on orders their submission could not accept.
	Orphans []OrphanPaymentResponse `json:"orphans"`
}

type DocumentURLResponse struct {
	Key       string    `json:"key"`
	FileID    string    `json:"file_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ============ Users ============

type UserResponse struct {
	ID       uint   `json:"id"`
	Login    string `json:"login"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

type RegisterRequest struct {
	Login    string `json:"login" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone" binding:"omitempty,len=10,numeric"`
}

type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int          `json:"expires_in"`
	User      UserResponse `json:"user"`
}

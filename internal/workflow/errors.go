package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies workflow failures by how the caller must recover.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUpload
	KindLink
	KindOrderCreation
	KindCheckoutLoad
	KindCheckoutAbandoned
	KindFinalizePostPayment
	KindStore
	KindResume
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindUpload:
		return "UPLOAD_ERROR"
	case KindLink:
		return "LINK_ERROR"
	case KindOrderCreation:
		return "ORDER_CREATION_ERROR"
	case KindCheckoutLoad:
		return "CHECKOUT_LOAD_FAILURE"
	case KindCheckoutAbandoned:
		return "CHECKOUT_ABANDONED"
	case KindFinalizePostPayment:
		return "FINALIZE_FAILURE_POST_PAYMENT"
	case KindStore:
		return "STORE_ERROR"
	case KindResume:
		return "RESUME_ERROR"
	}
	return "UNKNOWN_ERROR"
}

var (
	ErrNoSubmission       = errors.New("no submission id yet: save details first")
	ErrUnknownDocument    = errors.New("document key not declared by plan")
	ErrNothingToLink      = errors.New("no uploaded file retained for key")
	ErrNoOrder            = errors.New("no payment order opened")
	ErrNoCheckout         = errors.New("no successful checkout to finalize")
	ErrAlreadyPaid        = errors.New("submission already paid")
	ErrAlreadySubmitted   = errors.New("submission already submitted")
	ErrSubmissionFailed   = errors.New("submission has failed and cannot be resumed")
	ErrTerminalStep       = errors.New("workflow is complete")
	ErrNotEarlierStep     = errors.New("can only go back to an earlier step")
	ErrLockedAfterPayment = errors.New("details cannot change after payment")
	ErrPaymentIncomplete  = errors.New("payment step is not complete")
	ErrCheckoutClosed     = errors.New("checkout closed without a payment")
)

// Error carries the kind plus the correlation ids support needs to
// reconcile a record by hand.
type Error struct {
	Kind         Kind
	Op           string
	SubmissionID string
	Key          string
	OrderID      string
	PaymentID    string
	Amount       int64
	Fields       map[string]string
	Err          error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.SubmissionID != "" {
		fmt.Fprintf(&b, " submission=%s", e.SubmissionID)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key=%s", e.Key)
	}
	if e.OrderID != "" {
		fmt.Fprintf(&b, " order=%s", e.OrderID)
	}
	if e.PaymentID != "" {
		fmt.Fprintf(&b, " payment=%s", e.PaymentID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same call may simply be repeated.
// FinalizePostPayment is retryable only through RetryFinalize.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindUpload, KindLink, KindOrderCreation, KindCheckoutLoad, KindCheckoutAbandoned, KindStore:
		return true
	}
	return false
}

// UserMessage is the text shown to the applicant.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		return "Please correct the highlighted fields."
	case KindUpload:
		return fmt.Sprintf("Uploading %s failed. Please try again.", e.Key)
	case KindLink:
		return fmt.Sprintf("%s was uploaded but could not be attached. Retry to attach it without uploading again.", e.Key)
	case KindOrderCreation:
		return "We could not start the payment. You have not been charged. Please try again."
	case KindCheckoutLoad:
		return "The payment window could not be opened. Check your connection and try again."
	case KindCheckoutAbandoned:
		return "The payment was not completed. You can restart it when ready."
	case KindFinalizePostPayment:
		return fmt.Sprintf(
			"Your payment was received but we could not complete your submission. Do not pay again. "+
				"Contact support with submission %s, payment %s (order %s, amount %s).",
			e.SubmissionID, e.PaymentID, e.OrderID, FormatAmount(e.Amount))
	case KindResume:
		return "This application cannot be resumed."
	}
	return "Something went wrong. Please try again."
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return 0
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FormatAmount renders paise as rupees.
func FormatAmount(paise int64) string {
	return fmt.Sprintf("INR %d.%02d", paise/100, paise%100)
}

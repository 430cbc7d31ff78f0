package workflow

import (
	"errors"
	"testing"

	"filingdesk/internal/app/plan"
	"filingdesk/internal/app/status"
)

func TestStepMachineAdvance(t *testing.T) {
	m := NewStepMachine(NewValidator(plan.MustGet("basic")))

	if _, err := m.Advance(map[string]string{}, status.Draft); !IsKind(err, KindValidation) {
		t.Fatalf("advance with empty details: err = %v", err)
	}
	if m.Current() != StepDetails {
		t.Fatalf("step = %s after refused advance", m.Current())
	}

	steps := []struct {
		fields map[string]string
		st     status.Status
		want   Step
	}{
		{basicDetails(), status.Draft, StepDocuments},
		{map[string]string{"photo_id": "a", "address_proof": "b", "passport_photo": "c"}, status.DocsPending, StepReview},
		{map[string]string{FieldConfirm: "true"}, status.DocsPending, StepPayment},
	}
	for _, s := range steps {
		got, err := m.Advance(s.fields, s.st)
		if err != nil || got != s.want {
			t.Fatalf("advance to %s: got %s, %v", s.want, got, err)
		}
	}

	if _, err := m.Advance(nil, status.PaymentSuccessful); !errors.Is(err, ErrPaymentIncomplete) {
		t.Fatalf("leaving payment unpaid: err = %v", err)
	}
	if got, err := m.Advance(nil, status.Submitted); err != nil || got != StepSuccess {
		t.Fatalf("leaving payment submitted: %s, %v", got, err)
	}
	if _, err := m.Advance(nil, status.Submitted); !errors.Is(err, ErrTerminalStep) {
		t.Fatalf("advance past success: err = %v", err)
	}
}

func TestStepMachineRetreat(t *testing.T) {
	m := NewStepMachine(NewValidator(plan.MustGet("basic")))
	m.current = StepPayment

	if err := m.Retreat(StepPayment, status.PaymentPending); !errors.Is(err, ErrNotEarlierStep) {
		t.Fatalf("retreat to same step: err = %v", err)
	}
	if err := m.Retreat(StepDetails, status.PaymentSuccessful); !errors.Is(err, ErrLockedAfterPayment) {
		t.Fatalf("retreat after payment: err = %v", err)
	}
	if err := m.Retreat(StepDocuments, status.PaymentPending); err != nil {
		t.Fatalf("retreat before payment: %v", err)
	}
	if m.Current() != StepDocuments {
		t.Fatalf("step = %s", m.Current())
	}

	m.current = StepSuccess
	if err := m.Retreat(StepDetails, status.Submitted); !errors.Is(err, ErrTerminalStep) {
		t.Fatalf("retreat from success: err = %v", err)
	}
}

func TestResumeStep(t *testing.T) {
	tests := []struct {
		st   status.Status
		want Step
		kind Kind
	}{
		{status.Draft, StepDocuments, 0},
		{status.DocsPending, StepDocuments, 0},
		{status.PaymentPending, StepPayment, 0},
		{status.PaymentSuccessful, StepPayment, 0},
		{status.Submitted, StepSuccess, 0},
		{status.Failed, StepDetails, KindResume},
		{status.Status("BOGUS"), StepDetails, KindResume},
	}
	for _, tt := range tests {
		t.Run(string(tt.st), func(t *testing.T) {
			got, err := ResumeStep(tt.st)
			if got != tt.want {
				t.Fatalf("step = %s, want %s", got, tt.want)
			}
			if KindOf(err) != tt.kind {
				t.Fatalf("err = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

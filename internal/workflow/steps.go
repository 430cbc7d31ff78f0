package workflow

import (
	"fmt"

	"filingdesk/internal/app/status"
)

// StepMachine drives the linear wizard DETAILS -> DOCUMENTS -> REVIEW ->
// PAYMENT -> SUCCESS.
type StepMachine struct {
	validator *Validator
	current   Step
}

func NewStepMachine(v *Validator) *StepMachine {
	return &StepMachine{validator: v, current: StepDetails}
}

func (m *StepMachine) Current() Step {
	return m.current
}

// Advance moves one step forward if the current step's fields validate.
// Leaving PAYMENT requires a SUBMITTED record.
func (m *StepMachine) Advance(fields map[string]string, st status.Status) (Step, error) {
	switch m.current {
	case StepSuccess:
		return m.current, &Error{Kind: KindValidation, Op: "advance", Err: ErrTerminalStep}
	case StepPayment:
		if st != status.Submitted {
			return m.current, &Error{Kind: KindValidation, Op: "advance", Err: ErrPaymentIncomplete}
		}
	default:
		if res := m.validator.Validate(m.current, fields); !res.Valid {
			return m.current, &Error{Kind: KindValidation, Op: "advance", Fields: res.Errors}
		}
	}

	m.current++
	return m.current, nil
}

// Retreat moves back to an earlier step. It is refused once the record has
// been paid.
func (m *StepMachine) Retreat(to Step, st status.Status) error {
	if m.current == StepSuccess {
		return &Error{Kind: KindValidation, Op: "retreat", Err: ErrTerminalStep}
	}
	if to < StepDetails || to >= m.current {
		return &Error{Kind: KindValidation, Op: "retreat", Err: ErrNotEarlierStep}
	}
	if st.AtLeast(status.PaymentSuccessful) {
		return &Error{Kind: KindValidation, Op: "retreat", Err: ErrLockedAfterPayment}
	}

	m.current = to
	return nil
}

// Resume positions the machine at the furthest step the record reached.
func (m *StepMachine) Resume(st status.Status) (Step, error) {
	step, err := ResumeStep(st)
	if err != nil {
		return m.current, err
	}
	m.current = step
	return step, nil
}

// ResumeStep maps a persisted status to the step the wizard re-enters at.
func ResumeStep(st status.Status) (Step, error) {
	switch st {
	case status.Draft, status.DocsPending:
		return StepDocuments, nil
	case status.PaymentPending, status.PaymentSuccessful:
		return StepPayment, nil
	case status.Submitted:
		return StepSuccess, nil
	case status.Failed:
		return StepDetails, &Error{Kind: KindResume, Op: "resume", Err: ErrSubmissionFailed}
	}
	return StepDetails, &Error{Kind: KindResume, Op: "resume", Err: fmt.Errorf("unknown status %q", st)}
}

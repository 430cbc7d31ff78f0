// Package workflow is the client side of a filing submission: it validates
// each wizard step, creates or resumes the server record, uploads and links
// documents, runs the payment checkout and finalizes the record.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"filingdesk/internal/app/plan"
	"filingdesk/internal/app/status"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Store    Store
	Storage  Storage
	Orders   Orders
	Identity Identity
	PlanKey  string
	// IdempotencyKey is sent with draft creation. Generated when empty.
	IdempotencyKey string
	// AbandonAfter bounds the checkout wait. Zero waits until ctx ends.
	AbandonAfter time.Duration
	Logger       *logrus.Entry
}

// Orchestrator owns one submission from draft to SUBMITTED. Once a
// submission id is obtained it is never replaced.
type Orchestrator struct {
	identity  Identity
	plan      plan.Plan
	store     Store
	validator *Validator
	steps     *StepMachine
	uploads   *UploadGateway
	payments  *PaymentGateway
	log       *logrus.Entry

	mu       sync.Mutex
	idemKey  string
	record   *Record
	order    *Order
	checkout *CheckoutResult
}

func New(cfg Config) (*Orchestrator, error) {
	p, ok := plan.Get(cfg.PlanKey)
	if !ok {
		return nil, fmt.Errorf("workflow: unknown plan %q", cfg.PlanKey)
	}
	if cfg.Store == nil || cfg.Storage == nil || cfg.Orders == nil {
		return nil, fmt.Errorf("workflow: store, storage and orders are required")
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("plan", p.Key)

	idemKey := cfg.IdempotencyKey
	if idemKey == "" {
		idemKey = uuid.NewString()
	}

	v := NewValidator(p)
	return &Orchestrator{
		identity:  cfg.Identity,
		plan:      p,
		store:     cfg.Store,
		validator: v,
		steps:     NewStepMachine(v),
		uploads:   NewUploadGateway(p, cfg.Storage, cfg.Store, log),
		payments:  NewPaymentGateway(cfg.Orders, cfg.Store, cfg.AbandonAfter, log),
		log:       log,
		idemKey:   idemKey,
	}, nil
}

func (o *Orchestrator) Plan() plan.Plan {
	return o.plan
}

func (o *Orchestrator) Validator() *Validator {
	return o.validator
}

func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.steps.Current()
}

func (o *Orchestrator) SubmissionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.record == nil {
		return ""
	}
	return o.record.ID
}

// Record returns a copy of the in-memory mirror, or nil before the first save.
func (o *Orchestrator) Record() *Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.record.clone()
}

func (o *Orchestrator) Documents() []KeyStatus {
	return o.uploads.Statuses()
}

// Prefill fills email and phone from the identity when empty.
func (o *Orchestrator) Prefill(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	if out[plan.FieldEmail] == "" && o.identity.Email != "" {
		out[plan.FieldEmail] = o.identity.Email
	}
	if out[plan.FieldPhone] == "" && o.identity.Phone != "" {
		out[plan.FieldPhone] = o.identity.Phone
	}
	return out
}

// SaveDetails validates the details step and creates the draft, or updates
// it when an id is already known.
func (o *Orchestrator) SaveDetails(ctx context.Context, fields map[string]string) (*Record, error) {
	if res := o.validator.Validate(StepDetails, fields); !res.Valid {
		return nil, &Error{Kind: KindValidation, Op: "save details", SubmissionID: o.SubmissionID(), Fields: res.Errors}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.record != nil && o.record.Status.Paid() {
		return nil, &Error{Kind: KindValidation, Op: "save details", SubmissionID: o.record.ID, Err: ErrLockedAfterPayment}
	}

	var (
		rec *Record
		err error
	)
	if o.record == nil {
		rec, err = o.store.Create(ctx, o.idemKey, o.plan.Key, fields)
	} else {
		rec, err = o.store.Update(ctx, o.record.ID, fields)
	}
	if err != nil {
		werr := &Error{Kind: KindStore, Op: "save details", Err: err}
		if o.record != nil {
			werr.SubmissionID = o.record.ID
		}
		return nil, werr
	}

	if o.record != nil && rec.ID != o.record.ID {
		return nil, &Error{Kind: KindStore, Op: "save details", SubmissionID: o.record.ID,
			Err: fmt.Errorf("server returned submission %s", rec.ID)}
	}
	if rec.Status == status.DocsPending && o.order != nil {
		// the edit superseded the open order
		o.order = nil
	}
	o.record = rec.clone()
	o.log.WithField("submission_id", rec.ID).Debug("details saved")
	return rec.clone(), nil
}

// Resume loads a known submission and returns the step to re-enter at.
func (o *Orchestrator) Resume(ctx context.Context, id string) (Step, error) {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return StepDetails, &Error{Kind: KindResume, Op: "resume", SubmissionID: id, Err: err}
	}
	if rec.PlanKey != o.plan.Key {
		return StepDetails, &Error{Kind: KindResume, Op: "resume", SubmissionID: id,
			Err: fmt.Errorf("submission is for plan %s", rec.PlanKey)}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.record != nil && o.record.ID != rec.ID {
		return o.steps.Current(), &Error{Kind: KindResume, Op: "resume", SubmissionID: o.record.ID,
			Err: fmt.Errorf("already working on submission %s", o.record.ID)}
	}

	step, err := o.steps.Resume(rec.Status)
	if err != nil {
		if werr, ok := err.(*Error); ok {
			werr.SubmissionID = id
		}
		return step, err
	}

	o.record = rec.clone()
	o.uploads.Restore(rec.Documents)
	// An open order without a recorded payment is reopened through
	// InitiatePayment, which reuses it at the table price.
	if rec.Payment != nil && rec.Payment.PaymentID != "" {
		o.order = &Order{OrderID: rec.Payment.OrderID, Amount: rec.Payment.Amount, Currency: plan.Currency}
		o.checkout = &CheckoutResult{PaymentID: rec.Payment.PaymentID}
	}
	o.log.WithFields(logrus.Fields{"submission_id": id, "status": rec.Status, "step": step}).Info("submission resumed")
	return step, nil
}

// UploadDocument uploads and links one document.
func (o *Orchestrator) UploadDocument(ctx context.Context, key string, f File) (KeyStatus, error) {
	id, err := o.requireEditable("upload", KindUpload)
	if err != nil {
		return KeyStatus{Key: key, State: KeyError, Err: err}, err
	}
	st, err := o.uploads.Upload(ctx, id, key, f)
	o.mirrorDocument(st)
	return st, err
}

// UploadDocuments uploads distinct keys concurrently.
func (o *Orchestrator) UploadDocuments(ctx context.Context, files map[string]File) map[string]error {
	id, err := o.requireEditable("upload", KindUpload)
	if err != nil {
		errs := make(map[string]error, len(files))
		for key := range files {
			errs[key] = err
		}
		return errs
	}
	errs := o.uploads.UploadAll(ctx, id, files)
	for key := range files {
		o.mirrorDocument(o.uploads.Status(key))
	}
	return errs
}

// RetryLink re-links a key whose file was uploaded but not attached.
func (o *Orchestrator) RetryLink(ctx context.Context, key string) (KeyStatus, error) {
	id, err := o.requireEditable("retry link", KindLink)
	if err != nil {
		return KeyStatus{Key: key, State: KeyError, Err: err}, err
	}
	st, err := o.uploads.RetryLink(ctx, id, key)
	o.mirrorDocument(st)
	return st, err
}

func (o *Orchestrator) requireEditable(op string, kind Kind) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.record == nil {
		return "", &Error{Kind: kind, Op: op, Err: ErrNoSubmission}
	}
	if o.record.Status.Paid() {
		return "", &Error{Kind: kind, Op: op, SubmissionID: o.record.ID, Err: ErrLockedAfterPayment}
	}
	return o.record.ID, nil
}

func (o *Orchestrator) mirrorDocument(st KeyStatus) {
	if st.State != KeyLinked {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.record == nil {
		return
	}
	o.record.Documents[st.Key] = DocumentRef{FileURL: st.File.FileURL, FileID: st.File.FileID, UploadedAt: time.Now()}
	if o.record.Status == status.Draft || o.record.Status == status.PaymentPending {
		o.record.Status = status.DocsPending
		o.order = nil
	}
}

// Summary is what the review step shows before payment.
type Summary struct {
	SubmissionID string
	Plan         plan.Plan
	Form         map[string]string
	Documents    []KeyStatus
	// Amount is advisory; the server charges the table price.
	Amount int64
}

// Review checks that every required document is linked and returns the
// snapshot to confirm.
func (o *Orchestrator) Review() (Summary, error) {
	rec := o.Record()
	if rec == nil {
		return Summary{}, &Error{Kind: KindValidation, Op: "review", Err: ErrNoSubmission}
	}
	if res := o.validator.Validate(StepDocuments, o.uploads.Linked()); !res.Valid {
		return Summary{}, &Error{Kind: KindValidation, Op: "review", SubmissionID: rec.ID, Fields: res.Errors}
	}
	return Summary{
		SubmissionID: rec.ID,
		Plan:         o.plan,
		Form:         rec.Form,
		Documents:    o.uploads.Statuses(),
		Amount:       o.plan.Amount,
	}, nil
}

// Advance moves the wizard forward. extra carries step input that is not
// part of the record, such as the review confirmation.
func (o *Orchestrator) Advance(extra map[string]string) (Step, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var (
		fields map[string]string
		st     status.Status
	)
	if o.record != nil {
		st = o.record.Status
	}

	switch o.steps.Current() {
	case StepDetails:
		if o.record == nil {
			return StepDetails, &Error{Kind: KindValidation, Op: "advance", Err: ErrNoSubmission}
		}
		fields = o.record.Form
	case StepDocuments:
		fields = o.uploads.Linked()
	default:
		fields = extra
	}
	return o.steps.Advance(fields, st)
}

func (o *Orchestrator) Retreat(to Step) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var st status.Status
	if o.record != nil {
		st = o.record.Status
	}
	return o.steps.Retreat(to, st)
}

// InitiatePayment opens (or reuses) an order for the record.
func (o *Orchestrator) InitiatePayment(ctx context.Context) (Order, error) {
	o.mu.Lock()
	rec := o.record.clone()
	o.mu.Unlock()

	if rec == nil {
		return Order{}, &Error{Kind: KindOrderCreation, Op: "create order", Err: ErrNoSubmission}
	}
	switch rec.Status {
	case status.PaymentSuccessful:
		// Never open a second order for a charged record.
		return Order{}, o.paidNotSubmitted(rec)
	case status.Submitted:
		return Order{}, &Error{Kind: KindStore, Op: "create order", SubmissionID: rec.ID, Err: ErrAlreadySubmitted}
	}

	order, err := o.payments.CreateOrder(ctx, rec.ID)
	if err != nil {
		return Order{}, err
	}

	o.mu.Lock()
	o.order = &order
	o.checkout = nil
	if o.record.Status != status.PaymentPending {
		o.record.Status = status.PaymentPending
	}
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{"submission_id": rec.ID, "order_id": order.OrderID, "amount": order.Amount}).Info("order opened")
	return order, nil
}

func (o *Orchestrator) paidNotSubmitted(rec *Record) error {
	werr := &Error{Kind: KindFinalizePostPayment, Op: "create order", SubmissionID: rec.ID, Err: ErrAlreadyPaid}
	if rec.Payment != nil {
		werr.OrderID = rec.Payment.OrderID
		werr.PaymentID = rec.Payment.PaymentID
		werr.Amount = rec.Payment.Amount
	}
	return werr
}

// AwaitCheckout opens the checkout for the current order and waits for it.
func (o *Orchestrator) AwaitCheckout(ctx context.Context, surface CheckoutSurface) (CheckoutResult, error) {
	o.mu.Lock()
	id := ""
	if o.record != nil {
		id = o.record.ID
	}
	order := o.order
	o.mu.Unlock()

	if order == nil {
		return CheckoutResult{}, &Error{Kind: KindCheckoutLoad, Op: "checkout", SubmissionID: id, Err: ErrNoOrder}
	}

	res, err := o.payments.Checkout(ctx, id, *order, surface)
	if err != nil {
		return CheckoutResult{}, err
	}

	o.mu.Lock()
	o.checkout = &res
	o.mu.Unlock()
	return res, nil
}

// Finalize completes the record after a successful checkout.
func (o *Orchestrator) Finalize(ctx context.Context, res CheckoutResult) (*Record, error) {
	o.mu.Lock()
	id := ""
	if o.record != nil {
		id = o.record.ID
	}
	order := o.order
	o.checkout = &res
	o.mu.Unlock()

	if order == nil {
		return nil, &Error{Kind: KindFinalizePostPayment, Op: "finalize", SubmissionID: id, PaymentID: res.PaymentID, Err: ErrNoOrder}
	}

	rec, err := o.payments.Complete(ctx, id, *order, res)
	if err != nil {
		o.markPaid(*order, res)
		return nil, err
	}
	return o.finished(rec), nil
}

// RetryFinalize replays completion with the retained payment. It is the
// only recovery for KindFinalizePostPayment.
func (o *Orchestrator) RetryFinalize(ctx context.Context) (*Record, error) {
	o.mu.Lock()
	id := ""
	if o.record != nil {
		id = o.record.ID
	}
	order, checkout := o.order, o.checkout
	o.mu.Unlock()

	if order == nil || checkout == nil {
		return nil, &Error{Kind: KindFinalizePostPayment, Op: "retry finalize", SubmissionID: id, Err: ErrNoCheckout}
	}

	rec, err := o.payments.RetryFinalize(ctx, id, *order, *checkout)
	if err != nil {
		return nil, err
	}
	return o.finished(rec), nil
}

// Pay runs order, checkout and completion in sequence.
func (o *Orchestrator) Pay(ctx context.Context, surface CheckoutSurface) (*Record, error) {
	if _, err := o.InitiatePayment(ctx); err != nil {
		return nil, err
	}
	res, err := o.AwaitCheckout(ctx, surface)
	if err != nil {
		return nil, err
	}
	return o.Finalize(ctx, res)
}

// markPaid reflects a captured payment in the mirror so later calls
// never reopen an order.
func (o *Orchestrator) markPaid(order Order, res CheckoutResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.record == nil || o.record.Status == status.Submitted {
		return
	}
	o.record.Status = status.PaymentSuccessful
	o.record.Payment = &PaymentRef{OrderID: order.OrderID, PaymentID: res.PaymentID, Amount: order.Amount}
}

func (o *Orchestrator) finished(rec *Record) *Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.record = rec.clone()
	if o.steps.Current() == StepPayment {
		if _, err := o.steps.Advance(nil, rec.Status); err != nil {
			o.log.WithError(err).Warn("advance after finalize")
		}
	}
	o.log.WithFields(logrus.Fields{"submission_id": rec.ID, "status": rec.Status}).Info("submission finalized")
	return rec.clone()
}

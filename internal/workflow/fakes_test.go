package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"filingdesk/internal/app/plan"
	"filingdesk/internal/app/status"
)

var (
	errUnavailable = errors.New("service unavailable")
	errTransition  = errors.New("invalid transition")
)

// fakeStore follows the server's status rules in memory.
type fakeStore struct {
	mu      sync.Mutex
	seq     int
	records map[string]*Record
	byIdem  map[string]string

	failLink      map[string]int
	failFinalize  int
	failRecord    int
	linkCalls     map[string]int
	finalizeCalls int
	createCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:   make(map[string]*Record),
		byIdem:    make(map[string]string),
		failLink:  make(map[string]int),
		linkCalls: make(map[string]int),
	}
}

func (s *fakeStore) Create(_ context.Context, idemKey, planKey string, fields map[string]string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if id, ok := s.byIdem[idemKey]; ok {
		return s.records[id].clone(), nil
	}
	s.seq++
	rec := &Record{
		ID:        fmt.Sprintf("sub-%d", s.seq),
		Status:    status.Draft,
		PlanKey:   planKey,
		Form:      fields,
		Documents: map[string]DocumentRef{},
	}
	s.records[rec.ID] = rec.clone()
	s.byIdem[idemKey] = rec.ID
	return rec, nil
}

func (s *fakeStore) Update(_ context.Context, id string, fields map[string]string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	if !rec.Status.Editable() {
		return nil, errTransition
	}
	rec.Form = fields
	if rec.Status == status.PaymentPending {
		rec.Status = status.DocsPending
	}
	return rec.clone(), nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec.clone(), nil
}

func (s *fakeStore) LinkDocument(_ context.Context, id, key string, file StoredFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkCalls[key]++
	if s.failLink[key] > 0 {
		s.failLink[key]--
		return errUnavailable
	}
	rec, ok := s.records[id]
	if !ok {
		return errors.New("not found")
	}
	if prev, ok := rec.Documents[key]; ok && prev.FileURL == file.FileURL {
		return nil
	}
	if !rec.Status.Editable() {
		return errTransition
	}
	rec.Documents[key] = DocumentRef{FileURL: file.FileURL, FileID: file.FileID}
	rec.Status = status.DocsPending
	return nil
}

func (s *fakeStore) openOrder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return errors.New("not found")
	}
	if rec.Status != status.DocsPending && rec.Status != status.PaymentPending {
		return errTransition
	}
	p := plan.MustGet(rec.PlanKey)
	linked := map[string]string{}
	for k, d := range rec.Documents {
		linked[k] = d.FileURL
	}
	if missing := p.MissingDocuments(linked); len(missing) > 0 {
		return fmt.Errorf("documents incomplete: %s", strings.Join(missing, ","))
	}
	rec.Status = status.PaymentPending
	return nil
}

func (s *fakeStore) RecordPayment(_ context.Context, id string, order Order, res CheckoutResult) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecord > 0 {
		s.failRecord--
		return nil, errUnavailable
	}
	rec := s.records[id]
	if rec.Status.Paid() {
		if rec.Payment.PaymentID == res.PaymentID {
			return rec.clone(), nil
		}
		return nil, errors.New("payment mismatch")
	}
	if rec.Status != status.PaymentPending {
		return nil, errTransition
	}
	// The amount is the table price, as the server records it.
	price, _ := plan.Price(rec.PlanKey)
	rec.Status = status.PaymentSuccessful
	rec.Payment = &PaymentRef{OrderID: order.OrderID, PaymentID: res.PaymentID, Amount: price}
	return rec.clone(), nil
}

func (s *fakeStore) Finalize(_ context.Context, id, paymentID string, amount int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++
	if s.failFinalize > 0 {
		s.failFinalize--
		return nil, errUnavailable
	}
	rec := s.records[id]
	price, _ := plan.Price(rec.PlanKey)
	if amount != price {
		return nil, errors.New("amount mismatch")
	}
	if rec.Status == status.Submitted && rec.Payment.PaymentID == paymentID {
		return rec.clone(), nil
	}
	if rec.Status != status.PaymentSuccessful || rec.Payment.PaymentID != paymentID {
		return nil, errTransition
	}
	rec.Status = status.Submitted
	return rec.clone(), nil
}

func (s *fakeStore) status(id string) status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].Status
}

type fakeOrders struct {
	store *fakeStore
	mu    sync.Mutex
	fail  bool
	seq   int
	calls int
}

func (o *fakeOrders) CreateOrder(_ context.Context, id string) (Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.fail {
		return Order{}, errUnavailable
	}
	if err := o.store.openOrder(id); err != nil {
		return Order{}, err
	}
	rec, _ := o.store.Get(context.Background(), id)
	price, _ := plan.Price(rec.PlanKey)
	o.seq++
	return Order{OrderID: fmt.Sprintf("order_%d", o.seq), Amount: price, Currency: plan.Currency, KeyID: "test"}, nil
}

type fakeStorage struct {
	mu    sync.Mutex
	fail  map[string]int
	calls map[string]int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{fail: map[string]int{}, calls: map[string]int{}}
}

func (s *fakeStorage) Upload(_ context.Context, _ []byte, name, category string) (StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := category[strings.LastIndex(category, "/")+1:]
	s.calls[key]++
	if s.fail[key] > 0 {
		s.fail[key]--
		return StoredFile{}, errUnavailable
	}
	id := fmt.Sprintf("%s/%d-%s", category, s.calls[key], name)
	return StoredFile{FileURL: "mem://" + id, FileID: id, OriginalName: name}, nil
}

// fakeSurface yields result, fails to open, or never yields.
type fakeSurface struct {
	result  *CheckoutResult
	openErr error
	opened  []Order
}

func (s *fakeSurface) Open(_ context.Context, order Order) (<-chan CheckoutResult, error) {
	s.opened = append(s.opened, order)
	if s.openErr != nil {
		return nil, s.openErr
	}
	ch := make(chan CheckoutResult, 1)
	if s.result != nil {
		ch <- *s.result
	}
	return ch, nil
}

func basicDetails() map[string]string {
	return map[string]string{
		plan.FieldBusinessName:  "Acme Traders",
		plan.FieldApplicantName: "Asha Rao",
		plan.FieldEmail:         "asha@example.com",
		plan.FieldPhone:         "9876543210",
		plan.FieldAddress:       "12 MG Road, Bengaluru",
		plan.FieldState:         "Karnataka",
		plan.FieldPincode:       "560001",
	}
}

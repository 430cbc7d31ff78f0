package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"filingdesk/internal/app/config"
	"filingdesk/internal/app/dto"
	"filingdesk/internal/app/handler"
	"filingdesk/internal/app/middleware"
	"filingdesk/internal/app/payment"
	"filingdesk/internal/app/repository"
	"filingdesk/internal/app/status"
	"filingdesk/internal/app/storage"
	"filingdesk/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const keySecret = "dev_secret"

type memStorage struct {
	mu sync.Mutex
	n  int
}

func (m *memStorage) Upload(_ context.Context, data []byte, name, category string) (storage.UploadedFile, error) {
	if len(data) == 0 {
		return storage.UploadedFile{}, storage.ErrEmptyFile
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	id := fmt.Sprintf("%s/%d-%s", category, m.n, name)
	return storage.UploadedFile{FileURL: "https://files.test/" + id, FileID: id, OriginalName: name, Size: int64(len(data))}, nil
}

func (m *memStorage) PresignedURL(_ context.Context, fileID string, _ time.Duration) (string, error) {
	return "https://files.test/" + fileID + "?signed", nil
}

func (m *memStorage) Exists(context.Context, string) (bool, error) {
	return true, nil
}

// newServer runs the real API over sqlite without redis.
func newServer(t *testing.T) (*httptest.Server, *repository.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo, err := repository.NewWithDB(db)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}

	cfg := &config.Config{
		JWT:     config.JWTConfig{Token: "jwt", ExpiresIn: time.Hour, SigningMethod: jwt.SigningMethodHS256},
		Payment: config.PaymentConfig{KeySecret: keySecret, Timeout: time.Second},
	}
	auth := handler.NewAuthHandler(repo, nil, cfg)
	h := handler.NewAPIHandler(repo, &memStorage{}, payment.NewDevProvider(), nil, auth, cfg)

	router := gin.New()
	h.RegisterAPIRoutes(router, middleware.NewAuthMiddleware(nil, cfg), nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo
}

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := New(srv.URL, WithHTTPClient(srv.Client()))
	_, err := c.Register(context.Background(), dto.RegisterRequest{
		Login:    "asha",
		Password: "secret123",
		FullName: "Asha Rao",
		Email:    "asha@example.com",
		Phone:    "9876543210",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return c
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func details() map[string]string {
	return map[string]string{
		"business_name":  "Acme Traders",
		"applicant_name": "Asha Rao",
		"address":        "12 MG Road, Bengaluru",
		"state":          "Karnataka",
		"pincode":        "560001",
	}
}

func TestOrchestratorAgainstServer(t *testing.T) {
	srv, repo := newServer(t)
	c := newClient(t, srv)
	ctx := context.Background()

	ident, err := c.Identity(ctx)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}

	o, err := workflow.New(workflow.Config{
		Store:    c,
		Storage:  c,
		Orders:   c,
		Identity: ident,
		PlanKey:  "basic",
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}

	rec, err := o.SaveDetails(ctx, o.Prefill(details()))
	if err != nil {
		t.Fatalf("SaveDetails: %v", err)
	}
	if _, err := o.Advance(nil); err != nil {
		t.Fatalf("advance details: %v", err)
	}

	errs := o.UploadDocuments(ctx, map[string]workflow.File{
		"photo_id":       {Name: "id.pdf", Data: []byte("%PDF-1.4")},
		"address_proof":  {Name: "bill.pdf", Data: []byte("%PDF-1.4")},
		"passport_photo": {Name: "me.png", Data: []byte("\x89PNG")},
	})
	if len(errs) != 0 {
		t.Fatalf("UploadDocuments: %v", errs)
	}
	if _, err := o.Advance(nil); err != nil {
		t.Fatalf("advance documents: %v", err)
	}
	if _, err := o.Review(); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if _, err := o.Advance(map[string]string{workflow.FieldConfirm: "true"}); err != nil {
		t.Fatalf("advance review: %v", err)
	}

	done, err := o.Pay(ctx, DevCheckout{KeySecret: keySecret})
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if done.ID != rec.ID || done.Status != status.Submitted {
		t.Fatalf("done = %s %s, want %s SUBMITTED", done.ID, done.Status, rec.ID)
	}
	if o.Step() != workflow.StepSuccess {
		t.Fatalf("step = %s", o.Step())
	}

	stored, err := repo.GetSubmission(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if stored.Amount == nil || *stored.Amount != 149900 || len(stored.Documents) != 3 {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestResumeAgainstServer(t *testing.T) {
	srv, _ := newServer(t)
	c := newClient(t, srv)
	ctx := context.Background()

	fields := details()
	fields["email"] = "asha@example.com"
	fields["phone"] = "9876543210"
	rec, err := c.Create(ctx, "idem", "basic", fields)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	file, err := c.Upload(ctx, []byte("%PDF-1.4"), "id.pdf", rec.ID+"/photo_id")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := c.LinkDocument(ctx, rec.ID, "photo_id", file); err != nil {
		t.Fatalf("LinkDocument: %v", err)
	}

	o, _ := workflow.New(workflow.Config{Store: c, Storage: c, Orders: c, PlanKey: "basic", Logger: quietLogger()})
	step, err := o.Resume(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if step != workflow.StepDocuments {
		t.Fatalf("step = %s, want DOCUMENTS", step)
	}
	if diff := cmp.Diff(map[string]string{"photo_id": file.FileURL}, linked(o.Documents())); diff != "" {
		t.Fatalf("linked (-want +got):\n%s", diff)
	}

	replay, err := c.Create(ctx, "idem", "basic", fields)
	if err != nil || replay.ID != rec.ID {
		t.Fatalf("replay = %v, %v", replay, err)
	}
}

func TestResumeAtPaymentPendingThenPay(t *testing.T) {
	srv, _ := newServer(t)
	c := newClient(t, srv)
	ctx := context.Background()

	fields := details()
	fields["email"] = "asha@example.com"
	fields["phone"] = "9876543210"
	rec, err := c.Create(ctx, "idem", "basic", fields)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, key := range []string{"photo_id", "address_proof", "passport_photo"} {
		file, err := c.Upload(ctx, []byte("%PDF-1.4"), key+".pdf", rec.ID+"/"+key)
		if err != nil {
			t.Fatalf("Upload %s: %v", key, err)
		}
		if err := c.LinkDocument(ctx, rec.ID, key, file); err != nil {
			t.Fatalf("LinkDocument %s: %v", key, err)
		}
	}
	first, err := c.CreateOrder(ctx, rec.ID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	o, _ := workflow.New(workflow.Config{Store: c, Storage: c, Orders: c, PlanKey: "basic", Logger: quietLogger()})
	step, err := o.Resume(ctx, rec.ID)
	if err != nil || step != workflow.StepPayment {
		t.Fatalf("Resume = %s, %v", step, err)
	}

	if _, err := o.AwaitCheckout(ctx, DevCheckout{KeySecret: keySecret}); !workflow.IsKind(err, workflow.KindCheckoutLoad) {
		t.Fatalf("checkout before reopening the order: err = %v", err)
	}

	order, err := o.InitiatePayment(ctx)
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if order.OrderID != first.OrderID || order.Amount != 149900 {
		t.Fatalf("order = %+v, want reuse of %s at 149900", order, first.OrderID)
	}

	res, err := o.AwaitCheckout(ctx, DevCheckout{KeySecret: keySecret})
	if err != nil {
		t.Fatalf("AwaitCheckout: %v", err)
	}
	done, err := o.Finalize(ctx, res)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if done.ID != rec.ID || done.Status != status.Submitted {
		t.Fatalf("done = %s %s", done.ID, done.Status)
	}
}

func linked(statuses []workflow.KeyStatus) map[string]string {
	out := map[string]string{}
	for _, st := range statuses {
		if st.State == workflow.KeyLinked {
			out[st.Key] = st.File.FileURL
		}
	}
	return out
}

func TestStatusErrors(t *testing.T) {
	srv, _ := newServer(t)
	c := newClient(t, srv)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	var serr *StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusNotFound || serr.Code != "not_found" {
		t.Fatalf("Get missing: %v", err)
	}
	if serr.Temporary() {
		t.Fatal("404 reported as temporary")
	}

	bad := details()
	bad["pincode"] = "12"
	_, err = c.Create(ctx, "k", "basic", bad)
	if !errors.As(err, &serr) || serr.Code != "validation_failed" || serr.Fields["pincode"] == "" {
		t.Fatalf("Create invalid: %v (%+v)", err, serr)
	}

	anon := New(srv.URL, WithHTTPClient(srv.Client()))
	if _, err := anon.Identity(ctx); !errors.As(err, &serr) || serr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous Identity: %v", err)
	}
}

func TestOrderFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"status":"fail","code":"order_failed","message":"provider down"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateOrder(context.Background(), "sub-1")
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Code != "order_failed" || !serr.Temporary() {
		t.Fatalf("CreateOrder: %v", err)
	}
}

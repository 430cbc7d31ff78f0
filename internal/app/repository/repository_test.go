package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"filingdesk/internal/app/ds"
	"filingdesk/internal/app/plan"
	"filingdesk/internal/app/status"

	"github.com/google/go-cmp/cmp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo, err := NewWithDB(db)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	return repo
}

func newOwner(t *testing.T, repo *Repository, login string) uint {
	t.Helper()
	u, err := repo.CreateUser(ds.User{Login: login, Password: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u.ID
}

func basicFields() map[string]string {
	return map[string]string{
		"business_name":  "Acme Traders",
		"applicant_name": "Asha Rao",
		"email":          "asha@example.com",
		"phone":          "9876543210",
		"address":        "12 MG Road",
		"state":          "Karnataka",
		"pincode":        "560001",
	}
}

func linkAll(t *testing.T, repo *Repository, id string, keys ...string) {
	t.Helper()
	for _, key := range keys {
		_, err := repo.LinkDocument(context.Background(), id, key, "https://files.test/"+key, key+"-id")
		if err != nil {
			t.Fatalf("LinkDocument(%s): %v", key, err)
		}
	}
}

// paidSubmission drives a basic plan record to PAYMENT_SUCCESSFUL.
func paidSubmission(t *testing.T, repo *Repository) *ds.Submission {
	t.Helper()
	ctx := context.Background()
	owner := newOwner(t, repo, "payer")
	sub, _, err := repo.CreateSubmission(ctx, owner, "k1", "basic", basicFields())
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	linkAll(t, repo, sub.ID, "photo_id", "address_proof", "passport_photo")

	target, err := repo.PrepareOrder(ctx, sub.ID)
	if err != nil {
		t.Fatalf("PrepareOrder: %v", err)
	}
	_, err = repo.SaveOrder(ctx, sub.ID, ds.PaymentOrder{OrderID: "order_1", Amount: target.Amount, Currency: target.Currency})
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}
	paid, err := repo.RecordPayment(ctx, sub.ID, "order_1", "pay_1")
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	return paid
}

func TestCreateSubmissionIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "asha")

	first, created, err := repo.CreateSubmission(ctx, owner, "same-key", "basic", basicFields())
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if !created || first.Status != status.Draft {
		t.Fatalf("created=%v status=%s, want new DRAFT", created, first.Status)
	}

	again, created, err := repo.CreateSubmission(ctx, owner, "same-key", "basic", basicFields())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("replay created=%v id=%s, want existing %s", created, again.ID, first.ID)
	}

	_, _, err = repo.CreateSubmission(ctx, owner, "same-key", "state", basicFields())
	if !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("err = %v, want ErrIdempotencyConflict", err)
	}

	_, _, err = repo.CreateSubmission(ctx, owner, "other", "platinum", basicFields())
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("err = %v, want ErrUnknownPlan", err)
	}
}

func TestLinkDocumentIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "asha")
	sub, _, _ := repo.CreateSubmission(ctx, owner, "k", "basic", basicFields())

	for i := 0; i < 2; i++ {
		if _, err := repo.LinkDocument(ctx, sub.ID, "photo_id", "https://files.test/a", "a"); err != nil {
			t.Fatalf("link #%d: %v", i, err)
		}
	}
	got, _ := repo.GetSubmission(ctx, sub.ID)
	if len(got.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(got.Documents))
	}
	if got.Status != status.DocsPending {
		t.Fatalf("status = %s, want DOCS_PENDING", got.Status)
	}

	// A different reference replaces the previous one.
	if _, err := repo.LinkDocument(ctx, sub.ID, "photo_id", "https://files.test/b", "b"); err != nil {
		t.Fatalf("relink: %v", err)
	}
	got, _ = repo.GetSubmission(ctx, sub.ID)
	if len(got.Documents) != 1 || got.Documents[0].FileURL != "https://files.test/b" {
		t.Fatalf("documents = %+v, want single reference b", got.Documents)
	}

	_, err := repo.LinkDocument(ctx, sub.ID, "gstr1_summary", "https://files.test/x", "x")
	if !errors.Is(err, ErrUnknownDocument) {
		t.Fatalf("err = %v, want ErrUnknownDocument", err)
	}
}

func TestPartialUploadKeepsLinkedDocuments(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "asha")
	sub, _, _ := repo.CreateSubmission(ctx, owner, "k", "basic", basicFields())

	linkAll(t, repo, sub.ID, "photo_id", "address_proof")

	_, err := repo.PrepareOrder(ctx, sub.ID)
	if !errors.Is(err, ErrDocumentsIncomplete) {
		t.Fatalf("err = %v, want ErrDocumentsIncomplete", err)
	}
	if !strings.Contains(err.Error(), "passport_photo") {
		t.Fatalf("err %q does not name the missing key", err)
	}

	got, _ := repo.GetSubmission(ctx, sub.ID)
	linked := linkedDocuments(got)
	want := map[string]string{
		"photo_id":      "https://files.test/photo_id",
		"address_proof": "https://files.test/address_proof",
	}
	if diff := cmp.Diff(want, linked); diff != "" {
		t.Fatalf("linked documents mismatch (-want +got):\n%s", diff)
	}

	linkAll(t, repo, sub.ID, "passport_photo")
	if _, err := repo.PrepareOrder(ctx, sub.ID); err != nil {
		t.Fatalf("PrepareOrder after retry: %v", err)
	}
}

func TestPrepareOrderUsesPlanPrice(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "asha")

	fields := basicFields()
	fields["annual_turnover"] = "1000000"
	sub, _, _ := repo.CreateSubmission(ctx, owner, "k", "state", fields)
	linkAll(t, repo, sub.ID, "photo_id", "address_proof", "passport_photo", "business_proof", "noc")

	target, err := repo.PrepareOrder(ctx, sub.ID)
	if err != nil {
		t.Fatalf("PrepareOrder: %v", err)
	}
	if target.Amount != 499900 || target.Currency != "INR" {
		t.Fatalf("amount = %d %s, want 499900 INR", target.Amount, target.Currency)
	}
}

func TestOrderReuseAndSupersede(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "asha")
	sub, _, _ := repo.CreateSubmission(ctx, owner, "k", "basic", basicFields())
	linkAll(t, repo, sub.ID, "photo_id", "address_proof", "passport_photo")

	if _, err := repo.SaveOrder(ctx, sub.ID, ds.PaymentOrder{OrderID: "order_a", Amount: 149900, Currency: "INR"}); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}
	target, err := repo.PrepareOrder(ctx, sub.ID)
	if err != nil {
		t.Fatalf("PrepareOrder: %v", err)
	}
	if target.Existing == nil || target.Existing.OrderID != "order_a" {
		t.Fatalf("Existing = %+v, want order_a reused", target.Existing)
	}

	// Editing while payment is pending goes back to DOCS_PENDING.
	edited, err := repo.UpdateDetails(ctx, sub.ID, basicFields())
	if err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	if edited.Status != status.DocsPending || edited.OrderID != nil {
		t.Fatalf("status=%s order=%v, want DOCS_PENDING without order", edited.Status, edited.OrderID)
	}
	var order ds.PaymentOrder
	repo.DB().Where("order_id = ?", "order_a").First(&order)
	if order.Status != ds.OrderSuperseded {
		t.Fatalf("order status = %s, want superseded", order.Status)
	}
}

func TestForwardOnlyTransitions(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	paid := paidSubmission(t, repo)

	if _, err := repo.UpdateDetails(ctx, paid.ID, basicFields()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("edit after payment: err = %v, want ErrInvalidTransition", err)
	}
	_, err := repo.LinkDocument(ctx, paid.ID, "photo_id", "https://files.test/new", "n")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("relink after payment: err = %v, want ErrInvalidTransition", err)
	}
	// The identical reference is still a no-op.
	if _, err := repo.LinkDocument(ctx, paid.ID, "photo_id", "https://files.test/photo_id", "photo_id-id"); err != nil {
		t.Fatalf("identical relink: %v", err)
	}
	if _, err := repo.PrepareOrder(ctx, paid.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("order after payment: err = %v, want ErrInvalidTransition", err)
	}

	n, err := repo.ExpireStale(ctx, []status.Status{status.PaymentPending, status.DocsPending}, time.Now().Add(time.Hour), "expired")
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if n != 0 {
		t.Fatalf("expired %d paid records, want 0", n)
	}

	got, _ := repo.GetSubmission(ctx, paid.ID)
	if got.Status != status.PaymentSuccessful {
		t.Fatalf("status = %s, want PAYMENT_SUCCESSFUL", got.Status)
	}
}

func TestRecordPaymentIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	paid := paidSubmission(t, repo)

	again, err := repo.RecordPayment(ctx, paid.ID, "order_1", "pay_1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if again.Status != status.PaymentSuccessful || *again.PaymentID != "pay_1" {
		t.Fatalf("replay changed record: %+v", again)
	}
	if _, err := repo.RecordPayment(ctx, paid.ID, "order_1", "pay_2"); !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("err = %v, want ErrPaymentMismatch", err)
	}
}

// paidPlanSubmission drives a record of plan p to PAYMENT_SUCCESSFUL with an
// order charged at the table price.
func paidPlanSubmission(t *testing.T, repo *Repository, owner uint, p plan.Plan) *ds.Submission {
	t.Helper()
	ctx := context.Background()
	fields := basicFields()
	for _, name := range p.ExtraFields {
		fields[name] = "x"
	}
	sub, _, err := repo.CreateSubmission(ctx, owner, "k-"+p.Key, p.Key, fields)
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	linkAll(t, repo, sub.ID, p.RequiredDocs...)

	orderID := "order_" + p.Key
	_, err = repo.SaveOrder(ctx, sub.ID, ds.PaymentOrder{OrderID: orderID, Amount: p.Amount, Currency: plan.Currency})
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}
	paid, err := repo.RecordPayment(ctx, sub.ID, orderID, "pay_"+p.Key)
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	return paid
}

func TestFinalizePriceIntegrity(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "payer")

	for _, p := range plan.All() {
		p := p
		t.Run(p.Key, func(t *testing.T) {
			paid := paidPlanSubmission(t, repo, owner, p)
			paymentID := "pay_" + p.Key

			for _, amount := range []int64{p.Amount - 1, p.Amount + 1, 0} {
				if _, err := repo.Finalize(ctx, paid.ID, paymentID, amount); !errors.Is(err, ErrAmountMismatch) {
					t.Fatalf("Finalize(%d): err = %v, want ErrAmountMismatch", amount, err)
				}
			}
			if _, err := repo.Finalize(ctx, paid.ID, "pay_other", p.Amount); !errors.Is(err, ErrPaymentMismatch) {
				t.Fatalf("err = %v, want ErrPaymentMismatch", err)
			}

			done, err := repo.Finalize(ctx, paid.ID, paymentID, p.Amount)
			if err != nil {
				t.Fatalf("Finalize: %v", err)
			}
			if done.Status != status.Submitted || done.SubmittedAt == nil || done.ID != paid.ID {
				t.Fatalf("finalized record = %+v", done)
			}
			if done.Amount == nil || *done.Amount != p.Amount {
				t.Fatalf("amount = %v, want %d", done.Amount, p.Amount)
			}

			again, err := repo.Finalize(ctx, paid.ID, paymentID, p.Amount)
			if err != nil {
				t.Fatalf("repeat finalize: %v", err)
			}
			if again.Status != status.Submitted {
				t.Fatalf("status = %s, want SUBMITTED", again.Status)
			}
		})
	}
}

func TestRecordPaymentRejectsOffPriceOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "payer")

	for _, p := range plan.All() {
		p := p
		t.Run(p.Key, func(t *testing.T) {
			fields := basicFields()
			for _, name := range p.ExtraFields {
				fields[name] = "x"
			}
			sub, _, _ := repo.CreateSubmission(ctx, owner, "off-"+p.Key, p.Key, fields)
			linkAll(t, repo, sub.ID, p.RequiredDocs...)

			orderID := "order_off_" + p.Key
			if _, err := repo.SaveOrder(ctx, sub.ID, ds.PaymentOrder{OrderID: orderID, Amount: p.Amount - 1, Currency: plan.Currency}); err != nil {
				t.Fatalf("SaveOrder: %v", err)
			}
			if _, err := repo.RecordPayment(ctx, sub.ID, orderID, "pay_off"); !errors.Is(err, ErrAmountMismatch) {
				t.Fatalf("err = %v, want ErrAmountMismatch", err)
			}
			got, _ := repo.GetSubmission(ctx, sub.ID)
			if got.Status != status.PaymentPending {
				t.Fatalf("status = %s, want PAYMENT_PENDING", got.Status)
			}
		})
	}
}

func TestRecordPaymentOnSupersededOrderIsHeld(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "asha")
	sub, _, _ := repo.CreateSubmission(ctx, owner, "k", "basic", basicFields())
	linkAll(t, repo, sub.ID, "photo_id", "address_proof", "passport_photo")

	if _, err := repo.SaveOrder(ctx, sub.ID, ds.PaymentOrder{OrderID: "order_a", Amount: 149900, Currency: "INR"}); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}
	if _, err := repo.UpdateDetails(ctx, sub.ID, basicFields()); err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}

	if _, err := repo.RecordPayment(ctx, sub.ID, "order_a", "pay_a"); !errors.Is(err, ErrOrphanPayment) {
		t.Fatalf("err = %v, want ErrOrphanPayment", err)
	}
	var order ds.PaymentOrder
	repo.DB().Where("order_id = ?", "order_a").First(&order)
	if order.Status != ds.OrderOrphaned || order.PaymentID == nil || *order.PaymentID != "pay_a" {
		t.Fatalf("order = %+v, want paid_orphan with pay_a", order)
	}

	// Replays stay held and do not duplicate the trail.
	if _, err := repo.RecordPayment(ctx, sub.ID, "order_a", "pay_a"); !errors.Is(err, ErrOrphanPayment) {
		t.Fatalf("replay err = %v, want ErrOrphanPayment", err)
	}
	if _, err := repo.RecordPayment(ctx, sub.ID, "order_a", "pay_b"); !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("other payment err = %v, want ErrPaymentMismatch", err)
	}
	orphans, err := repo.ListOrphanPayments(ctx)
	if err != nil {
		t.Fatalf("ListOrphanPayments: %v", err)
	}
	if len(orphans) != 1 || orphans[0].SubmissionID != sub.ID || orphans[0].Amount != 149900 {
		t.Fatalf("orphans = %+v", orphans)
	}

	got, _ := repo.GetSubmission(ctx, sub.ID)
	if got.Status != status.DocsPending || got.PaymentID != nil {
		t.Fatalf("record = %+v, want DOCS_PENDING without payment", got)
	}
}

func TestRecordPaymentAfterExpiryIsHeld(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "asha")
	sub, _, _ := repo.CreateSubmission(ctx, owner, "k", "basic", basicFields())
	linkAll(t, repo, sub.ID, "photo_id", "address_proof", "passport_photo")
	if _, err := repo.SaveOrder(ctx, sub.ID, ds.PaymentOrder{OrderID: "order_late", Amount: 149900, Currency: "INR"}); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	n, err := repo.ExpireStale(ctx, []status.Status{status.PaymentPending}, time.Now().Add(time.Hour), "payment_expired")
	if err != nil || n != 1 {
		t.Fatalf("ExpireStale = %d, %v", n, err)
	}

	if _, err := repo.RecordPayment(ctx, sub.ID, "order_late", "pay_late"); !errors.Is(err, ErrOrphanPayment) {
		t.Fatalf("err = %v, want ErrOrphanPayment", err)
	}
	orphans, _ := repo.ListOrphanPayments(ctx)
	if len(orphans) != 1 || *orphans[0].PaymentID != "pay_late" {
		t.Fatalf("orphans = %+v", orphans)
	}
	got, _ := repo.GetSubmission(ctx, sub.ID)
	if got.Status != status.Failed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
}

func TestFinalizeRequiresPayment(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "asha")
	sub, _, _ := repo.CreateSubmission(ctx, owner, "k", "basic", basicFields())

	if _, err := repo.Finalize(ctx, sub.ID, "pay_1", 149900); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if _, err := repo.Finalize(ctx, "missing", "pay_1", 149900); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestExpireStaleAndStuckPaid(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := newOwner(t, repo, "asha")

	stale, _, _ := repo.CreateSubmission(ctx, owner, "old", "basic", basicFields())
	fresh, _, _ := repo.CreateSubmission(ctx, owner, "new", "basic", basicFields())
	paid := paidSubmission(t, repo)

	old := time.Now().Add(-72 * time.Hour)
	repo.DB().Model(&ds.Submission{}).Where("id IN ?", []string{stale.ID, paid.ID}).UpdateColumn("updated_at", old)

	n, err := repo.ExpireStale(ctx, []status.Status{status.Draft}, time.Now().Add(-24*time.Hour), "draft_expired")
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	got, _ := repo.GetSubmission(ctx, stale.ID)
	if got.Status != status.Failed || got.FailureReason != "draft_expired" {
		t.Fatalf("stale record = %s/%s", got.Status, got.FailureReason)
	}
	got, _ = repo.GetSubmission(ctx, fresh.ID)
	if got.Status != status.Draft {
		t.Fatalf("fresh record = %s, want DRAFT", got.Status)
	}

	stuck, err := repo.ListStuckPaid(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListStuckPaid: %v", err)
	}
	if len(stuck) != 1 || stuck[0].ID != paid.ID {
		t.Fatalf("stuck = %+v, want %s", stuck, paid.ID)
	}

	if _, err := repo.ExpireStale(ctx, []status.Status{status.PaymentSuccessful}, time.Now(), "x"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

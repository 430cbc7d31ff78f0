package status

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestForwardOnlyAfterPayment(t *testing.T) {
	for _, to := range []Status{Draft, DocsPending, PaymentPending, Failed} {
		if CanTransition(PaymentSuccessful, to) {
			t.Errorf("PAYMENT_SUCCESSFUL -> %s must be refused", to)
		}
	}
	for _, to := range []Status{Draft, DocsPending, PaymentPending, PaymentSuccessful, Failed} {
		if CanTransition(Submitted, to) {
			t.Errorf("SUBMITTED -> %s must be refused", to)
		}
	}
	if !CanTransition(PaymentSuccessful, Submitted) {
		t.Fatal("finalize edge missing")
	}
}

func TestEditBeforePaymentReturnsToDocs(t *testing.T) {
	if !CanTransition(PaymentPending, DocsPending) {
		t.Fatal("edit while PAYMENT_PENDING should be allowed")
	}
	if CanTransition(DocsPending, Draft) {
		t.Fatal("nothing returns a record to DRAFT")
	}
}

func TestSources(t *testing.T) {
	got := Sources(Failed)
	want := []Status{Draft, DocsPending, PaymentPending}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Sources(FAILED) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Status{PaymentSuccessful}, Sources(Submitted)); diff != "" {
		t.Fatalf("Sources(SUBMITTED) mismatch (-want +got):\n%s", diff)
	}
}

func TestAtLeast(t *testing.T) {
	if !Submitted.AtLeast(PaymentSuccessful) {
		t.Error("SUBMITTED should be past PAYMENT_SUCCESSFUL")
	}
	if Failed.AtLeast(Draft) {
		t.Error("FAILED is off the forward path")
	}
	if _, ok := Parse("BOGUS"); ok {
		t.Error("unknown status parsed")
	}
}

package status

// Status is the lifecycle state of a submission record.
type Status string

const (
	Draft             Status = "DRAFT"
	DocsPending       Status = "DOCS_PENDING"
	PaymentPending    Status = "PAYMENT_PENDING"
	PaymentSuccessful Status = "PAYMENT_SUCCESSFUL"
	Submitted         Status = "SUBMITTED"
	Failed            Status = "FAILED"
)

var rank = map[Status]int{
	Draft:             0,
	DocsPending:       1,
	PaymentPending:    2,
	PaymentSuccessful: 3,
	Submitted:         4,
}

func Parse(s string) (Status, bool) {
	st := Status(s)
	if _, ok := rank[st]; ok || st == Failed {
		return st, true
	}
	return "", false
}

func (s Status) String() string { return string(s) }

func (s Status) Terminal() bool {
	return s == Submitted || s == Failed
}

// Editable reports whether form details and documents may still change.
// Editing a PAYMENT_PENDING record sends it back to DOCS_PENDING.
func (s Status) Editable() bool {
	return s == Draft || s == DocsPending || s == PaymentPending
}

// Paid reports whether the record has reached PAYMENT_SUCCESSFUL or later.
func (s Status) Paid() bool {
	return s == PaymentSuccessful || s == Submitted
}

// AtLeast compares positions on the forward path. FAILED is off the path
// and never compares as at least anything.
func (s Status) AtLeast(other Status) bool {
	a, ok1 := rank[s]
	b, ok2 := rank[other]
	return ok1 && ok2 && a >= b
}

// CanTransition encodes the allowed edges of the record lifecycle.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case Draft:
		return to == DocsPending || to == Failed
	case DocsPending:
		return to == PaymentPending || to == Failed
	case PaymentPending:
		return to == DocsPending || to == PaymentSuccessful || to == Failed
	case PaymentSuccessful:
		return to == Submitted
	}
	return false
}

// Sources returns every status from which to is reachable in one step.
// Used to build guarded UPDATE ... WHERE status IN (...) statements.
func Sources(to Status) []Status {
	var out []Status
	for _, from := range []Status{Draft, DocsPending, PaymentPending, PaymentSuccessful, Submitted, Failed} {
		if from != to && CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

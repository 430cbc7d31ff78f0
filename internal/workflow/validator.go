package workflow

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"filingdesk/internal/app/plan"

	"github.com/go-playground/validator/v10"
)

// FieldConfirm is the review step acknowledgement.
const FieldConfirm = "confirm"

var (
	mobileRe  = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	gstinRe   = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	finYearRe = regexp.MustCompile(`^([0-9]{4})-([0-9]{2})$`)
	amountRe  = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,2})?$`)
)

var fieldRules = map[string]string{
	plan.FieldBusinessName:   "required,min=2,max=120",
	plan.FieldApplicantName:  "required,min=2,max=80",
	plan.FieldEmail:          "required,email,max=100",
	plan.FieldPhone:          "required,in_mobile",
	plan.FieldAddress:        "required,min=5,max=300",
	plan.FieldState:          "required,max=60",
	plan.FieldPincode:        "required,in_pincode",
	plan.FieldAnnualTurnover: "required,turnover",
	plan.FieldGSTIN:          "required,gstin",
	plan.FieldFinancialYear:  "required,fin_year",
}

var reasons = map[string]string{
	"required":   "is required",
	"min":        "is too short",
	"max":        "is too long",
	"email":      "must be a valid email address",
	"in_mobile":  "must be a 10 digit mobile number starting with 6-9",
	"in_pincode": "must be a 6 digit pincode",
	"turnover":   "must be a non-negative amount in rupees",
	"gstin":      "must be a valid 15 character GSTIN",
	"fin_year":   "must look like 2023-24",
}

// Result is the outcome of validating one step.
type Result struct {
	Valid  bool
	Errors map[string]string
}

func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Kind: KindValidation, Op: "validate", Fields: r.Errors}
}

// Validator holds the rules of one plan. It is pure and safe for concurrent
// use.
type Validator struct {
	plan plan.Plan
	v    *validator.Validate
}

func NewValidator(p plan.Plan) *Validator {
	v := validator.New()
	mustRegister(v, "in_mobile", mobileRe.MatchString)
	mustRegister(v, "in_pincode", pincodeRe.MatchString)
	mustRegister(v, "gstin", gstinRe.MatchString)
	mustRegister(v, "turnover", amountRe.MatchString)
	mustRegister(v, "fin_year", validFinancialYear)

	return &Validator{plan: p, v: v}
}

func mustRegister(v *validator.Validate, tag string, match func(string) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return match(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

func validFinancialYear(s string) bool {
	m := finYearRe.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return (start+1)%100 == end
}

func (v *Validator) Plan() plan.Plan {
	return v.plan
}

// Validate checks the fields of one step. For DOCUMENTS, fields maps
// document keys to file URLs.
func (v *Validator) Validate(step Step, fields map[string]string) Result {
	errs := map[string]string{}

	switch step {
	case StepDetails:
		for _, name := range v.plan.RequiredFields() {
			if reason := v.check(name, fields[name]); reason != "" {
				errs[name] = reason
			}
		}
		for name := range fields {
			if !v.plan.IsField(name) {
				errs[name] = "is not a field of this plan"
			}
		}
	case StepDocuments:
		for _, key := range v.plan.MissingDocuments(fields) {
			errs[key] = "is required"
		}
		for key := range fields {
			if !v.plan.IsDocumentKey(key) {
				errs[key] = "is not a document of this plan"
			}
		}
	case StepReview:
		if fields[FieldConfirm] != "true" {
			errs[FieldConfirm] = "must be confirmed"
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateField checks a single details field, for per-keystroke feedback.
// It returns "" when the value is acceptable.
func (v *Validator) ValidateField(name, value string) string {
	if !v.plan.IsField(name) {
		return "is not a field of this plan"
	}
	return v.check(name, value)
}

func (v *Validator) check(name, value string) string {
	rule, ok := fieldRules[name]
	if !ok {
		rule = "required"
	}
	err := v.v.Var(strings.TrimSpace(value), rule)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if reason, ok := reasons[verrs[0].Tag()]; ok {
			return reason
		}
		return "is invalid"
	}
	return err.Error()
}

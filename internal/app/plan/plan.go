// Package plan holds the server-trusted catalogue of filing plans: the price
// charged for each plan and the documents and form fields it requires.
package plan

import (
	"fmt"
	"sort"
)

const Currency = "INR"

// Field names shared by every plan.
const (
	FieldBusinessName   = "business_name"
	FieldApplicantName  = "applicant_name"
	FieldEmail          = "email"
	FieldPhone          = "phone"
	FieldAddress        = "address"
	FieldState          = "state"
	FieldPincode        = "pincode"
	FieldAnnualTurnover = "annual_turnover"
	FieldGSTIN          = "gstin"
	FieldFinancialYear  = "financial_year"
)

var baseFields = []string{
	FieldBusinessName,
	FieldApplicantName,
	FieldEmail,
	FieldPhone,
	FieldAddress,
	FieldState,
	FieldPincode,
}

type Plan struct {
	Key          string
	Title        string
	Amount       int64 // paise
	RequiredDocs []string
	OptionalDocs []string
	ExtraFields  []string
}

var catalogue = map[string]Plan{
	"basic": {
		Key:          "basic",
		Title:        "FSSAI Basic Registration",
		Amount:       149900,
		RequiredDocs: []string{"photo_id", "address_proof", "passport_photo"},
		OptionalDocs: []string{"business_proof"},
	},
	"state": {
		Key:          "state",
		Title:        "FSSAI State License",
		Amount:       499900,
		RequiredDocs: []string{"photo_id", "address_proof", "passport_photo", "business_proof", "noc"},
		OptionalDocs: []string{"layout_plan"},
		ExtraFields:  []string{FieldAnnualTurnover},
	},
	"central": {
		Key:          "central",
		Title:        "FSSAI Central License",
		Amount:       999900,
		RequiredDocs: []string{"photo_id", "address_proof", "passport_photo", "business_proof", "noc", "import_export_code"},
		OptionalDocs: []string{"layout_plan", "water_report"},
		ExtraFields:  []string{FieldAnnualTurnover},
	},
	"gst_annual": {
		Key:          "gst_annual",
		Title:        "GST Annual Return (GSTR-9)",
		Amount:       299900,
		RequiredDocs: []string{"gstr1_summary", "gstr3b_summary", "purchase_register"},
		OptionalDocs: []string{"balance_sheet"},
		ExtraFields:  []string{FieldGSTIN, FieldFinancialYear},
	},
}

// Get returns the plan for key.
func Get(key string) (Plan, bool) {
	p, ok := catalogue[key]
	return p, ok
}

// MustGet is Get for keys known at compile time.
func MustGet(key string) Plan {
	p, ok := catalogue[key]
	if !ok {
		panic(fmt.Sprintf("plan: unknown plan %q", key))
	}
	return p
}

// All returns the catalogue ordered by price.
func All() []Plan {
	out := make([]Plan, 0, len(catalogue))
	for _, p := range catalogue {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount == out[j].Amount {
			return out[i].Key < out[j].Key
		}
		return out[i].Amount < out[j].Amount
	})
	return out
}

// Price resolves the amount charged for a plan. Client-supplied amounts are
// never consulted.
func Price(key string) (int64, error) {
	p, ok := catalogue[key]
	if !ok {
		return 0, fmt.Errorf("plan: unknown plan %q", key)
	}
	return p.Amount, nil
}

// RequiredFields returns the base fields followed by the plan's extra fields.
func (p Plan) RequiredFields() []string {
	out := make([]string, 0, len(baseFields)+len(p.ExtraFields))
	out = append(out, baseFields...)
	return append(out, p.ExtraFields...)
}

func (p Plan) DocumentKeys() []string {
	out := make([]string, 0, len(p.RequiredDocs)+len(p.OptionalDocs))
	out = append(out, p.RequiredDocs...)
	return append(out, p.OptionalDocs...)
}

func (p Plan) IsDocumentKey(key string) bool {
	return contains(p.RequiredDocs, key) || contains(p.OptionalDocs, key)
}

func (p Plan) IsRequiredDocument(key string) bool {
	return contains(p.RequiredDocs, key)
}

func (p Plan) IsField(name string) bool {
	return contains(baseFields, name) || contains(p.ExtraFields, name)
}

// MissingDocuments lists required keys absent from linked, in plan order.
func (p Plan) MissingDocuments(linked map[string]string) []string {
	var missing []string
	for _, key := range p.RequiredDocs {
		if linked[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

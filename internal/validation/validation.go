// Package validation holds the acceptability check for extracted purchase
// orders. A result separates blocking errors from warnings and notes so that
// imperfect but usable extractions still flow through.
package validation

import (
	"github.com/oluwaseun-a/po-tracker/internal/failure"
)

// Result collects the outcome of validating one extracted order.
// Warnings and notes never block downstream persistence.
type Result struct {
	Errors   []failure.FieldError `json:"errors"`
	Warnings []failure.FieldError `json:"warnings"`
	Notes    []failure.FieldError `json:"notes"`
}

// Acceptable reports whether the result has no blocking errors.
func (r *Result) Acceptable() bool {
	return len(r.Errors) == 0
}

// AddError records a blocking error.
func (r *Result) AddError(field, message string) {
	r.Errors = append(r.Errors, failure.FieldError{Field: field, Message: message})
}

// AddWarning records a non-blocking warning.
func (r *Result) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, failure.FieldError{Field: field, Message: message})
}

// AddNote records an informational note.
func (r *Result) AddNote(field, message string) {
	r.Notes = append(r.Notes, failure.FieldError{Field: field, Message: message})
}

// Ruleset configures the validate stage. Thresholds are configuration, not
// hard-coded values.
type Ruleset struct {
	// RequiredFields lists dotted field paths that must be present.
	RequiredFields []string
	// MoneyTolerance is the allowed absolute difference between the grand
	// total and the line-item sum.
	MoneyTolerance float64
}

// DefaultRuleset mirrors the fields every purchase order must carry.
func DefaultRuleset() Ruleset {
	return Ruleset{
		RequiredFields: []string{"poNumber", "buyerInfo.email", "orderDate"},
		MoneyTolerance: 0.01,
	}
}

// Requires reports whether a field path is in the required set.
func (rs Ruleset) Requires(path string) bool {
	for _, f := range rs.RequiredFields {
		if f == path {
			return true
		}
	}
	return false
}

package models

// Severity levels for validation issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Validation status values derived from issue severities.
const (
	ValidationStatusValid    = "valid"
	ValidationStatusWarnings = "warnings"
	ValidationStatusErrors   = "errors"
)

// ValidationIssue is a single error or warning on one field path.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult aggregates all issues found for one record.
type ValidationResult struct {
	RecordType        string            `json:"record_type"`
	Status            string            `json:"status"`
	CompletenessScore float64           `json:"completeness_score"`
	Errors            []ValidationIssue `json:"errors"`
	Warnings          []ValidationIssue `json:"warnings"`
	MissingRequired   []string          `json:"missing_required"`
	ValidFields       []string          `json:"valid_fields"`
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Field: field, Message: message})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Field: field, Message: message})
}

// AddValid marks a field path as successfully validated.
func (r *ValidationResult) AddValid(field string) {
	r.ValidFields = append(r.ValidFields, field)
}

// Finalize derives the status from the collected issues.
// errors > warnings/missing > valid.
func (r *ValidationResult) Finalize() {
	switch {
	case len(r.Errors) > 0:
		r.Status = ValidationStatusErrors
	case len(r.Warnings) > 0 || len(r.MissingRequired) > 0:
		r.Status = ValidationStatusWarnings
	default:
		r.Status = ValidationStatusValid
	}
}

package filevalidator

import (
	"fmt"
	"time"
)

// ValidationResult is the verdict for one file. It is created once per
// validation call and not modified after it is returned.
type ValidationResult struct {
	// IsValid is true iff Errors is empty
	IsValid bool `json:"isValid"`

	// Errors contains admission failures in check order
	Errors []string `json:"errors"`

	// Warnings contains non-fatal observations; they never affect IsValid
	Warnings []string `json:"warnings"`

	// Fingerprint is the lowercase hex SHA-256 of the content. Empty when
	// fingerprinting is disabled or the content was unreadable.
	Fingerprint string `json:"fingerprint,omitempty"`

	// DetectedContentType is the type inferred from magic bytes. Empty when no
	// signature matched.
	DetectedContentType string `json:"detectedContentType,omitempty"`

	// DeclaredContentType is the caller-supplied content type
	DeclaredContentType string `json:"declaredContentType,omitempty"`

	// Size is the number of bytes read from the content stream
	Size int64 `json:"size"`

	// Duration is how long validation took
	Duration time.Duration `json:"duration"`

	// Checks contains details about each stage that ran
	Checks []CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of a single validation stage
type CheckResult struct {
	Name    string        `json:"name"`    // e.g., "size", "content_type", "structure", "threat_scan"
	Passed  bool          `json:"passed"`  // whether this stage added no errors
	Message string        `json:"message"` // human-readable result
	Took    time.Duration `json:"took"`
}

// Err returns a *RejectionError carrying all errors if validation failed, nil if valid
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	errs := make([]string, len(r.Errors))
	copy(errs, r.Errors)
	return &RejectionError{Errors: errs}
}

// HasWarnings returns true if there are any warnings
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Summary returns a human-readable summary of the validation
func (r *ValidationResult) Summary() string {
	detected := r.DetectedContentType
	if detected == "" {
		detected = "unknown type"
	}
	if r.IsValid {
		return fmt.Sprintf("valid (%s, %d bytes, %d warnings) in %v",
			detected, r.Size, len(r.Warnings), r.Duration.Round(time.Microsecond))
	}
	return fmt.Sprintf("invalid (%s): %s", detected, r.Errors[0])
}

// FailedChecks returns only the checks that failed
func (r *ValidationResult) FailedChecks() []CheckResult {
	var failed []CheckResult
	for _, check := range r.Checks {
		if !check.Passed {
			failed = append(failed, check)
		}
	}
	return failed
}

// resultBuilder accumulates one validation pass. Errors and warnings are
// append-only; IsValid is derived from Errors when the result is built.
type resultBuilder struct {
	result    ValidationResult
	startTime time.Time
}

func newResultBuilder(declaredType string) *resultBuilder {
	return &resultBuilder{
		result: ValidationResult{
			DeclaredContentType: declaredType,
			Errors:              []string{},
			Warnings:            []string{},
		},
		startTime: time.Now(),
	}
}

func (b *resultBuilder) addError(format string, args ...any) {
	b.result.Errors = append(b.result.Errors, fmt.Sprintf(format, args...))
}

func (b *resultBuilder) addWarning(format string, args ...any) {
	b.result.Warnings = append(b.result.Warnings, fmt.Sprintf(format, args...))
}

func (b *resultBuilder) errorCount() int {
	return len(b.result.Errors)
}

func (b *resultBuilder) addCheck(name string, passed bool, message string, took time.Duration) {
	b.result.Checks = append(b.result.Checks, CheckResult{
		Name:    name,
		Passed:  passed,
		Message: message,
		Took:    took,
	})
}

func (b *resultBuilder) build() *ValidationResult {
	b.result.IsValid = len(b.result.Errors) == 0
	b.result.Duration = time.Since(b.startTime)
	return &b.result
}

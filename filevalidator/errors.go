package filevalidator

import (
	"errors"
	"fmt"
	"strings"
)

// Messages appended to ValidationResult.Errors and ValidationResult.Warnings.
// Downstream systems surface errors verbatim, so keep them stable.
const (
	MsgUnreadableContent = "File content is empty or inaccessible"

	msgSizeExceeded       = "File size %d bytes exceeds maximum allowed size of %d bytes"
	msgTypeNotAllowed     = "Content type %q is not allowed"
	msgDetectedNotAllowed = "Detected content type %q is not allowed"
	msgTypeMismatch       = "Declared content type %q does not match detected content type %q"
	msgThreatDetected     = "Threat detected: %s"
	msgFormatUnavailable  = "Format validation unavailable for content type %q"
	msgInternalError      = "validation error: %s"
)

// ErrUnreadableContent is returned by readers wrapped by the validator when the
// content stream is absent, empty or fails mid-read.
var ErrUnreadableContent = errors.New("content is empty or inaccessible")

// RejectionError is the error form of an invalid ValidationResult.
// It carries every admission error so callers can report all of them at once.
type RejectionError struct {
	// Errors are the ValidationResult errors, in check order.
	Errors []string
}

// Error implements the error interface
func (e *RejectionError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("file rejected: %s", e.Errors[0])
	}
	return fmt.Sprintf("file rejected with %d errors: %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// IsRejection checks if an error is a RejectionError
func IsRejection(err error) bool {
	var rejection *RejectionError
	return errors.As(err, &rejection)
}

// RejectionErrors returns the validation errors carried by err, or nil if err
// is not a RejectionError
func RejectionErrors(err error) []string {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Errors
	}
	return nil
}

package services

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvoiceNotFound is returned when the referenced invoice row is absent.
var ErrInvoiceNotFound = errors.New("invoice not found")

// ValidationError rejects malformed input before any mutation. The message
// is safe to surface to callers.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

package domain

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by a transport when the owner has no cart.
var ErrNotFound = errors.New("cart not found")

// ValidationError rejects malformed input before it reaches a store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TransportError wraps a storage or network failure of a cart transport operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cart transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err unless it is nil, ErrNotFound or already a TransportError.
func NewTransportError(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

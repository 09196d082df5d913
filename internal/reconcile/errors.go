package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrSessionMismatch  = errors.New("record does not belong to this browser session")
	ErrAlreadyPaid      = errors.New("registration is already paid")
	ErrInvalidPayment   = errors.New("payment does not belong to this record")
	ErrNoInitialPayment = errors.New("registration has not received its initial payment")
	ErrPaidInFull       = errors.New("registration is already paid in full")
)

// FieldError names one rejected input by its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected input field. Nothing is persisted and
// the gateway is never contacted when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// GatewayError wraps a failed gateway call. Message is the provider's text
// and is safe to show to the payer.
type GatewayError struct {
	Op      string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func newGatewayError(op string, err error) *GatewayError {
	msg := err.Error()
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		msg = gwErr.Message
	}
	return &GatewayError{Op: op, Message: msg, Err: err}
}

// Package gateway describes the card payment provider the camp collects
// money through. Implementations live in subpackages.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

type IntentStatus string

const (
	StatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	StatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	StatusRequiresAction        IntentStatus = "requires_action"
	StatusProcessing            IntentStatus = "processing"
	StatusRequiresCapture       IntentStatus = "requires_capture"
	StatusCanceled              IntentStatus = "canceled"
	StatusSucceeded             IntentStatus = "succeeded"
)

// Metadata keys written on every intent.
const (
	MetaRegistrationID = "registration_id"
	MetaDonationID     = "donation_id"
	MetaPaymentType    = "payment_type"
)

// Intent is the gateway's view of one payment attempt. Amount is in minor units.
type Intent struct {
	ID           string
	Amount       int64
	Currency     string
	Status       IntentStatus
	Metadata     map[string]string
	ClientSecret string
}

// Open reports whether the intent can still be paid or reused.
func (i *Intent) Open() bool {
	return i.Status == StatusRequiresPaymentMethod || i.Status == StatusRequiresConfirmation
}

func (i *Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

type CreateParams struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

type Gateway interface {
	CreateIntent(ctx context.Context, params CreateParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) error
}

var ErrIntentNotFound = errors.New("payment intent not found")

// Error carries the provider's human-readable message.
type Error struct {
	Message    string
	Code       string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error (%s): %s", e.Code, e.Message)
	}
	return "gateway error: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var ErrNotConfigured = errors.New("payment gateway is not configured")

// Disabled stands in when no provider keys are set. Every call fails with
// ErrNotConfigured.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, CreateParams) (*Intent, error) {
	return nil, &Error{Message: "Payment system is not configured.", Err: ErrNotConfigured}
}

func (Disabled) RetrieveIntent(context.Context, string) (*Intent, error) {
	return nil, &Error{Message: "Payment system is not configured.", Err: ErrNotConfigured}
}

func (Disabled) CancelIntent(context.Context, string) error {
	return &Error{Message: "Payment system is not configured.", Err: ErrNotConfigured}
}

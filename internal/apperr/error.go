package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindInsufficientFunds   Kind = "INSUFFICIENT_FUNDS"
	KindSubmission          Kind = "SUBMISSION"
	KindConfirmationTimeout Kind = "CONFIRMATION_TIMEOUT"
	KindConversion          Kind = "CONVERSION"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindInternal            Kind = "INTERNAL"
)

// Error is a classified failure that crosses a service boundary
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`

	// MinimumUSD is set on conversion failures caused by an amount that is too small
	MinimumUSD *decimal.Decimal `json:"minimum_usd,omitempty"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// JSON is the response body shape used by the HTTP layer
func (e *Error) JSON() map[string]any {
	body := map[string]any{
		"kind":    e.Kind,
		"message": e.Message,
	}
	if e.MinimumUSD != nil {
		body["minimum_usd"] = e.MinimumUSD.StringFixed(2)
	}
	return map[string]any{"error": body}
}

type Option func(*Error)

func WithErr(err error) Option {
	return func(e *Error) { e.Err = err }
}

func WithMinimumUSD(amount decimal.Decimal) Option {
	return func(e *Error) { e.MinimumUSD = &amount }
}

func New(kind Kind, message string, opts ...Option) *Error {
	e := &Error{Kind: kind, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Validation(msg string, opts ...Option) *Error {
	return New(KindValidation, msg, opts...)
}

func NotFound(msg string, opts ...Option) *Error {
	return New(KindNotFound, msg, opts...)
}

func Conflict(msg string, opts ...Option) *Error {
	return New(KindConflict, msg, opts...)
}

func InsufficientFunds(msg string, opts ...Option) *Error {
	return New(KindInsufficientFunds, msg, opts...)
}

func Submission(msg string, err error) *Error {
	return New(KindSubmission, msg, WithErr(err))
}

func ConfirmationTimeout(msg string) *Error {
	return New(KindConfirmationTimeout, msg)
}

func Conversion(msg string, opts ...Option) *Error {
	return New(KindConversion, msg, opts...)
}

func Unauthorized(msg string) *Error {
	return New(KindUnauthorized, msg)
}

func Internal(msg string, err error) *Error {
	return New(KindInternal, msg, WithErr(err))
}

// KindOf reports the classification of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

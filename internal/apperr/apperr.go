package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the failure class of a domain error. Handlers map kinds to
// HTTP statuses; services never convert one kind into another.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInvalidTransition   Kind = "invalid_transition"
	KindConflict            Kind = "conflict"
	KindInvalidAmount       Kind = "invalid_amount"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindValidation          Kind = "validation_failed"
	KindUpstream            Kind = "upstream_failure"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a domain error with a stable kind and a human message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches an underlying cause to a domain error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error            { return New(KindNotFound, message) }
func Forbidden(message string) *Error           { return New(KindForbidden, message) }
func InvalidTransition(message string) *Error   { return New(KindInvalidTransition, message) }
func Conflict(message string) *Error            { return New(KindConflict, message) }
func InvalidAmount(message string) *Error       { return New(KindInvalidAmount, message) }
func InsufficientBalance(message string) *Error { return New(KindInsufficientBalance, message) }
func Validation(message string) *Error          { return New(KindValidation, message) }
func Upstream(message string, err error) *Error { return Wrap(KindUpstream, message, err) }

// KindOf extracts the kind from an error chain, or "" for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the human message of a domain error, or the raw error text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindInvalidTransition, KindInvalidAmount, KindInsufficientBalance, KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Package apperr defines the typed errors returned by the booking and
// messaging services and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and transports.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindForbidden
	KindInvalidTransition
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindConflict:
		return "Conflict"
	case KindForbidden:
		return "Forbidden"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindNotFound:
		return "NotFound"
	default:
		return "Internal"
	}
}

// Error is a classified, user-presentable error. Fields carries per-field
// detail for validation failures, keyed by the JSON field name.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and message so package level
// values like ErrSlotUnavailable work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// ErrSlotUnavailable is the conflict returned when a requested interval
// collides with an existing reservation.
var ErrSlotUnavailable = &Error{Kind: KindConflict, Message: "slot unavailable, choose another time"}

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Field is shorthand for a validation error on a single field.
func Field(field, problem string) *Error {
	return Validation(field+" "+problem, map[string]string{field: problem})
}

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func InvalidTransition(msg string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: msg}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// Internal wraps an unexpected failure. The message shown to callers stays generic.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err onto the status code the gateway responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message and field details safe to show a caller.
func Public(err error) (string, map[string]string) {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal error", nil
	}
	return e.Message, e.Fields
}

package apperror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidInput    Kind = "INVALID_INPUT"
	KindAuthenticity    Kind = "AUTHENTICITY_ERROR"
	KindDataAccess      Kind = "DATA_ACCESS"
	KindUpstream        Kind = "UPSTREAM_FAILURE"
	KindUpstreamTimeout Kind = "UPSTREAM_TIMEOUT"
	KindNotFound        Kind = "NOT_FOUND"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindConflict        Kind = "CONFLICT"
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind         `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	Err     error        `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindAuthenticity:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (e *Error) MarshalJSON() ([]byte, error) {
	type alias struct {
		Code    Kind         `json:"code"`
		Message string       `json:"message"`
		Details []FieldError `json:"details,omitempty"`
	}
	return json.Marshal(&alias{Code: e.Kind, Message: e.Message, Details: e.Details})
}

func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = append(e.Details, details...)
	return e
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(message string, details ...FieldError) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Details: details}
}

func Authenticity(err error) *Error {
	return Wrap(err, KindAuthenticity, "webhook signature verification failed")
}

// DataAccess hides the underlying cause from the client; the message is generic.
func DataAccess(err error) *Error {
	if to := FromContext(err); to != nil {
		return to
	}
	return Wrap(err, KindDataAccess, "internal storage error")
}

func Upstream(err error, message string) *Error {
	if to := FromContext(err); to != nil {
		return to
	}
	return Wrap(err, KindUpstream, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// FromContext returns an UpstreamTimeout error when err was caused by an
// expired deadline, nil otherwise.
func FromContext(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, KindUpstreamTimeout, "upstream call timed out")
	}
	return nil
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

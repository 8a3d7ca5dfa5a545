package rpc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/light-letter/lightletter/pkg/session"
)

// Kind classifies an RPC failure.
type Kind uint8

const (
	// IllegalArgs means the request failed validation.
	IllegalArgs Kind = iota + 1
	// Internal means storage or another backend failed.
	Internal
	// NoSuchRoute means no handler is registered for the path.
	NoSuchRoute
	// Parse means the payload was not valid JSON for the request shape.
	Parse
	// Forbidden means the transport was used incorrectly (e.g. GET on /rpc).
	Forbidden
	// Unauthorized means the handler requires a logged in session.
	Unauthorized
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case IllegalArgs:
		return "IllegalArgs"
	case Internal:
		return "InternalError"
	case NoSuchRoute:
		return "NoSuchRoute"
	case Parse:
		return "ParseError"
	case Forbidden:
		return "Forbidden"
	case Unauthorized:
		return "Unauthorized"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by Dispatch.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// HTTPStatus maps the kind to the status written at the HTTP boundary.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case IllegalArgs, Parse:
		return http.StatusBadRequest
	case NoSuchRoute:
		return http.StatusNotFound
	case Forbidden, Unauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is.
var (
	ErrIllegalArgs  = &Error{Kind: IllegalArgs}
	ErrInternal     = &Error{Kind: Internal}
	ErrNoSuchRoute  = &Error{Kind: NoSuchRoute}
	ErrParse        = &Error{Kind: Parse}
	ErrForbidden    = &Error{Kind: Forbidden}
	ErrUnauthorized = &Error{Kind: Unauthorized}
)

// IllegalArgsf builds an IllegalArgs error.
func IllegalArgsf(format string, args ...any) *Error {
	return &Error{Kind: IllegalArgs, Message: fmt.Sprintf(format, args...)}
}

// InternalError wraps a backend failure.
func InternalError(err error) *Error {
	return &Error{Kind: Internal, Message: err.Error(), Wrapped: err}
}

// AsError converts any error to an *Error. Errors that are not already
// RPC errors become Internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return InternalError(err)
}

// RequireLogin returns an Unauthorized error unless s is logged in.
func RequireLogin(s *session.Session) error {
	if !s.LoggedIn() {
		return &Error{Kind: Unauthorized, Message: "login required"}
	}
	return nil
}

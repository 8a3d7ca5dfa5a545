package channel

import "fmt"

// Kind identifies the type of request error.
type Kind uint8

const (
	// InvalidRequest means the request could not be serialized locally.
	InvalidRequest Kind = iota + 1
	// InvalidResponse means the response did not decode into the expected shape.
	InvalidResponse
	// Custom covers non-success statuses and transport failures.
	Custom
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "InvalidRequest"
	case InvalidResponse:
		return "InvalidResponse"
	case Custom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Error is returned by every channel call that fails.
type Error struct {
	Kind    Kind
	Message string
}

// Sentinels for errors.Is.
var (
	ErrInvalidRequest  = &Error{Kind: InvalidRequest}
	ErrInvalidResponse = &Error{Kind: InvalidResponse}
	ErrCustom          = &Error{Kind: Custom}
)

func (e *Error) Error() string {
	if e.Message == "" {
		return "channel: " + e.Kind.String()
	}
	return fmt.Sprintf("channel: %s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf builds a Custom error, the kind handlers and transports report.
func Errorf(format string, args ...any) *Error {
	return &Error{Kind: Custom, Message: fmt.Sprintf(format, args...)}
}

package search

import "errors"

// ErrorKind classifies a failed operation for the caller.
type ErrorKind string

// Error kinds surfaced on the wire as error_type.
const (
	ErrInvalidInput ErrorKind = "invalid_input"
	ErrTimeout      ErrorKind = "timeout"
	ErrHTTP         ErrorKind = "http"
	ErrGeneral      ErrorKind = "general"
)

// Error is the typed failure result for search and fetch operations. Message
// is user-facing; Hint optionally suggests what to try instead. Code carries
// the upstream HTTP status when Kind is ErrHTTP.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
	Hint    string
}

func (e *Error) Error() string {
	return e.Message
}

// AsError extracts a typed *Error from err, or wraps err as an ErrGeneral.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: ErrGeneral, Message: err.Error()}
}

// IsTimeout reports whether err is a typed timeout error.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrTimeout
}

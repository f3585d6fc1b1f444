package errprocess

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it to a status.
type Kind string

const (
	// Unauthorized caller identity is missing or invalid
	Unauthorized Kind = "unauthorized"
	// Forbidden caller is not a participant
	Forbidden Kind = "forbidden"
	// NotFound conversation, message or user does not exist
	NotFound Kind = "not_found"
	// InvalidArgument bad input (self conversation, empty body, bad cursor ...)
	InvalidArgument Kind = "invalid_argument"
	// TransientStoreFailure the store could not serve the request
	TransientStoreFailure Kind = "transient_store_failure"
	// RelayPublishFailure publish to the relay failed; never surfaced to callers
	RelayPublishFailure Kind = "relay_publish_failure"
	// Internal anything unclassified
	Internal Kind = "internal"
)

// Error carries a Kind, a caller-safe message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err returns nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-safe message. Store and internal failures
// get a generic text so driver details never leak.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case TransientStoreFailure:
		return "service temporarily unavailable"
	case Internal, RelayPublishFailure:
		return "internal error"
	}
	return e.Msg
}

// Package taskerr defines the error type shared by every stage of a publishing run.
//
// Errors carry a Kind so callers can branch without matching on text; the
// message is only rendered when the error crosses the CLI or HTTP boundary.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	// KindConfig is a missing credential or unknown site, detected before any network call
	KindConfig Kind = iota + 1
	// KindTransport is a connection or timeout failure
	KindTransport
	// KindProtocol is a non-success HTTP status from a remote API
	KindProtocol
	// KindDecode is malformed base64, JSON or model output
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a tagged pipeline error
type Error struct {
	Kind Kind
	// Op is the human prefix of the rendered message, e.g. "OpenAI API error"
	Op string
	// Status is the HTTP status for KindProtocol
	Status int
	// Body is the verbatim response body for KindProtocol
	Body string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindProtocol:
		return fmt.Sprintf("%s: %s", e.Op, e.Body)
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Op
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configf returns a KindConfig error with a formatted message
func Configf(format string, args ...any) error {
	return &Error{Kind: KindConfig, Op: fmt.Sprintf(format, args...)}
}

// Transport wraps a network failure
func Transport(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// Protocol records a non-success response
func Protocol(op string, status int, body string) error {
	return &Error{Kind: KindProtocol, Op: op, Status: status, Body: body}
}

// Decode wraps a parse failure
func Decode(op string, err error) error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}

// KindOf returns the Kind of err, or 0 when err is not a *Error
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// Is reports whether err is a *Error of the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

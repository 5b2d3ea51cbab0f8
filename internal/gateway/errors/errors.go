// Package errors defines the gateway error taxonomy. Decode failures map to
// client faults, engine and encode failures to server faults; no error in
// this package is ever retried inside the gateway.
package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrRegistryRequired = sterrors.New("recordgate: type registry is required")
	ErrLoggerRequired   = sterrors.New("recordgate: logger is required")
	ErrEngineRequired   = sterrors.New("recordgate: engine executor is required")
	ErrConfigRequired   = sterrors.New("recordgate: configuration is required")

	ErrEmptyEnvelope   = sterrors.New("recordgate: empty envelope")
	ErrNoMessageNode   = sterrors.New("recordgate: no message node found in envelope")
	ErrNoMessageName   = sterrors.New("recordgate: message name could not be extracted")
	ErrNoResult        = sterrors.New("recordgate: result is required")
	ErrUnknownValue    = sterrors.New("recordgate: value kind cannot be encoded")
	ErrMissingIdentity = sterrors.New("recordgate: record reference requires an identity")
)

// DecodeError reports a failure turning wire bytes into a typed Message.
type DecodeError struct {
	Reason string
	Err    error
}

func (e DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recordgate: decode: %s: %v", e.Reason, e.Err)
	}
	return "recordgate: decode: " + e.Reason
}

func (e DecodeError) Unwrap() error { return e.Err }

// NewDecodeError wraps err as a DecodeError with the given reason.
func NewDecodeError(reason string, err error) error {
	return DecodeError{Reason: reason, Err: err}
}

// EncodeError reports a failure serializing an otherwise-successful result.
type EncodeError struct {
	Reason string
	Err    error
}

func (e EncodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recordgate: encode: %s: %v", e.Reason, e.Err)
	}
	return "recordgate: encode: " + e.Reason
}

func (e EncodeError) Unwrap() error { return e.Err }

// NewEncodeError wraps err as an EncodeError with the given reason.
func NewEncodeError(reason string, err error) error {
	return EncodeError{Reason: reason, Err: err}
}

// EngineError propagates a failure from the external execution engine
// unchanged, so the fault envelope carries the engine's own message.
type EngineError struct {
	Err error
}

func (e EngineError) Error() string {
	return "recordgate: engine: " + e.Err.Error()
}

func (e EngineError) Unwrap() error { return e.Err }

// NewEngineError wraps err as an EngineError. A nil err returns nil.
func NewEngineError(err error) error {
	if err == nil {
		return nil
	}
	return EngineError{Err: err}
}

// MalformedValueError reports a composite wire value missing a structurally
// required child. Path names the offending node.
type MalformedValueError struct {
	Path   string
	Reason string
	Err    error
}

func (e MalformedValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recordgate: malformed value at %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("recordgate: malformed value at %s: %s", e.Path, e.Reason)
}

func (e MalformedValueError) Unwrap() error { return e.Err }

// NewMalformedValue builds a MalformedValueError for the node at path.
func NewMalformedValue(path, reason string, err error) error {
	return MalformedValueError{Path: path, Reason: reason, Err: err}
}

// IsDecode reports whether err belongs to the client-fault class.
func IsDecode(err error) bool {
	var de DecodeError
	if sterrors.As(err, &de) {
		return true
	}
	var mv MalformedValueError
	return sterrors.As(err, &mv)
}

// IsEngine reports whether err originated in the external engine.
func IsEngine(err error) bool {
	var ee EngineError
	return sterrors.As(err, &ee)
}

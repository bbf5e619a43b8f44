// Package provider defines the capability contracts external collaborators
// (STT, LLM, TTS, VAD, Vector store, Embedding) must satisfy, per §6 of the
// spec. The core never depends on a vendor's wire protocol, only on these
// interfaces.
package provider

import "errors"

// ErrRecoverable indicates a transient provider failure: network blip, 5xx,
// stream reset. Callers retry once within the subsystem's deadline, per §7.
var ErrRecoverable = errors.New("recoverable provider error")

// ErrFatal indicates a permanent provider failure: unknown provider id,
// missing credentials, malformed request. Surfaced at session create, never
// retried.
var ErrFatal = errors.New("fatal provider error")

// IsRecoverable reports whether err (or anything it wraps) is ErrRecoverable.
func IsRecoverable(err error) bool { return errors.Is(err, ErrRecoverable) }

// IsFatal reports whether err (or anything it wraps) is ErrFatal.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }

// WrapRecoverable annotates err as recoverable while preserving it for
// errors.Is/As via Unwrap.
func WrapRecoverable(err error, msg string) error {
	return &classifiedError{underlying: err, msg: msg, sentinel: ErrRecoverable}
}

// WrapFatal annotates err as fatal while preserving it for errors.Is/As via
// Unwrap.
func WrapFatal(err error, msg string) error {
	return &classifiedError{underlying: err, msg: msg, sentinel: ErrFatal}
}

type classifiedError struct {
	underlying error
	msg        string
	sentinel   error
}

func (e *classifiedError) Error() string {
	if e.msg == "" {
		return e.underlying.Error()
	}
	return e.msg + ": " + e.underlying.Error()
}

func (e *classifiedError) Unwrap() []error { return []error{e.underlying, e.sentinel} }

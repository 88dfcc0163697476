package matching

import (
	"errors"
	"fmt"
)

// Kind is the stable, caller-visible code of a failed search.
type Kind string

const (
	KindValidation Kind = "VALIDATION_FAILURE"
	KindAuth       Kind = "AUTH_FAILURE"
	KindTransport  Kind = "TRANSPORT_FAILURE"
	KindScoring    Kind = "SCORING_FAILURE"
	KindStore      Kind = "STORE_FAILURE"
)

// Error is a pipeline-level failure. It aborts the whole search.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func AuthError(err error) *Error {
	return &Error{Kind: KindAuth, Message: "requester could not be resolved", Err: err}
}

// TransportError reports a failed exchange with the scoring backend. Only
// retryable transport errors (network, timeout, 5xx, 429) are retried.
func TransportError(message string, retryable bool, err error) *Error {
	return &Error{Kind: KindTransport, Message: message, Retryable: retryable, Err: err}
}

// ScoringError reports a 2xx response that is not a valid judgment document.
func ScoringError(message string, err error) *Error {
	return &Error{Kind: KindScoring, Message: message, Err: err}
}

func StoreError(err error) *Error {
	return &Error{Kind: KindStore, Message: "profile store unavailable", Retryable: true, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err is a pipeline error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

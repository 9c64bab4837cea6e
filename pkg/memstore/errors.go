package memstore

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry,
// reject, or surface the error.
type Kind string

const (
	// KindBadInput marks malformed or out-of-contract data; never retried.
	KindBadInput Kind = "bad_input"
	// KindNotFound marks a missing entity.
	KindNotFound Kind = "not_found"
	// KindTransient marks failures that may succeed on retry.
	KindTransient Kind = "transient"
	// KindPermanent marks failures that will never succeed on retry.
	KindPermanent Kind = "permanent"
	// KindConflict marks idempotency-key collisions (duplicate work).
	KindConflict Kind = "conflict"
	// KindConfig marks invalid configuration; fatal at startup.
	KindConfig Kind = "config"
)

// Sentinels usable with errors.Is. An *Error matches the sentinel of
// its Kind regardless of the wrapped cause.
var (
	ErrBadInput  = errors.New("bad input")
	ErrNotFound  = errors.New("not found")
	ErrTransient = errors.New("transient failure")
	ErrPermanent = errors.New("permanent failure")
	ErrConflict  = errors.New("conflict")
	ErrConfig    = errors.New("configuration error")
)

// Error is the domain error carried by all store and pipeline operations.
type Error struct {
	Kind    Kind
	Op      string // logical operation, e.g. "memstore.Insert"
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

func sentinelFor(k Kind) error {
	switch k {
	case KindBadInput:
		return ErrBadInput
	case KindNotFound:
		return ErrNotFound
	case KindTransient:
		return ErrTransient
	case KindPermanent:
		return ErrPermanent
	case KindConflict:
		return ErrConflict
	case KindConfig:
		return ErrConfig
	default:
		return nil
	}
}

// E builds a domain error.
func E(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindPermanent for
// unclassified errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindPermanent
}

// Retryable reports whether the error is worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

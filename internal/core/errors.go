package core

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can handle each mode explicitly.
type Kind string

const (
	KindConfiguration Kind = "configuration_error"
	KindConnection    Kind = "connection_error"
	KindValidation    Kind = "validation_error"
	KindWrite         Kind = "write_error"
	KindNotFound      Kind = "not_found_error"
	KindInternal      Kind = "internal_error"
)

// Error is the error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error of the given kind wrapping err.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal for foreign errors. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DataQualityWarning describes a stored record that could not be fully used.
// It never fails a load; the record stays in the store.
type DataQualityWarning struct {
	RecordID string
	Field    string
	Reason   string
	Dropped  bool
}

func (w DataQualityWarning) String() string {
	action := "coerced"
	if w.Dropped {
		action = "dropped"
	}
	return fmt.Sprintf("record %s %s: %s (%s)", w.RecordID, action, w.Reason, w.Field)
}

// Package dberrors defines the typed error taxonomy used across the engine:
// I/O, Format, Schema, Constraint, History, and MergeConflict failures.
// Every engine operation returns one of these wrapped with context instead
// of panicking; callers use errors.Is/errors.As to branch on kind.
package dberrors

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error into one of the taxonomy buckets from
// the error-handling design.
type Kind int

const (
	KindIO Kind = iota
	KindFormat
	KindSchema
	KindConstraint
	KindHistory
	KindMergeConflict
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindSchema:
		return "schema"
	case KindConstraint:
		return "constraint"
	case KindHistory:
		return "history"
	case KindMergeConflict:
		return "merge_conflict"
	default:
		return "unknown"
	}
}

// Error is the engine's single error type; Kind lets callers branch on
// category without string-matching messages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, dberrors.IO) style kind checks via the sentinel
// values below.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind && te.Msg == ""
	}
	return false
}

func newf(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func wrapf(k Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Sentinels usable as errors.Is(err, dberrors.IO) targets (Msg left empty
// so Error.Is matches on Kind alone).
var (
	IO            = &Error{Kind: KindIO}
	Format        = &Error{Kind: KindFormat}
	Schema        = &Error{Kind: KindSchema}
	Constraint    = &Error{Kind: KindConstraint}
	History       = &Error{Kind: KindHistory}
	MergeConflict = &Error{Kind: KindMergeConflict}
)

func IOf(format string, args ...interface{}) error         { return newf(KindIO, format, args...) }
func FormatF(format string, args ...interface{}) error     { return newf(KindFormat, format, args...) }
func SchemaF(format string, args ...interface{}) error     { return newf(KindSchema, format, args...) }
func ConstraintF(format string, args ...interface{}) error { return newf(KindConstraint, format, args...) }
func HistoryF(format string, args ...interface{}) error    { return newf(KindHistory, format, args...) }
func MergeConflictF(format string, args ...interface{}) error {
	return newf(KindMergeConflict, format, args...)
}

func WrapIO(err error, format string, args ...interface{}) error {
	return wrapf(KindIO, err, format, args...)
}

func WrapFormat(err error, format string, args ...interface{}) error {
	return wrapf(KindFormat, err, format, args...)
}

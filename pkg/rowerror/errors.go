// Package rowerror classifies the errors a row can raise while it is being
// converted. Structural and missing-field errors abort the run; unresolvable
// references and attribute conflicts only affect the row that raised them.
package rowerror

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindStructural   Kind = "structural_input"
	KindMissingField Kind = "missing_required_field"
	KindUnresolvable Kind = "unresolvable_reference"
	KindConflict     Kind = "duplicate_key_conflict"
)

// Fatal reports whether errors of this kind abort the pipeline run.
func (k Kind) Fatal() bool {
	return k == KindStructural || k == KindMissingField
}

type Error struct {
	Kind    Kind
	Source  string
	Line    int
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	path := []string{}
	if e.Source != "" {
		path = append(path, fmt.Sprintf("source '%s'", e.Source))
	}
	if e.Line > 0 {
		path = append(path, fmt.Sprintf("line %d", e.Line))
	}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}

	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}

	if len(path) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, strings.Join(path, ", "), msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Fatal() bool {
	return e.Kind.Fatal()
}

// Structural is raised when a row has fewer fields than its source requires.
func Structural(want, got int) *Error {
	return &Error{
		Kind:    KindStructural,
		Message: fmt.Sprintf("expected at least %d fields, got %d", want, got),
	}
}

func MissingField(field string) *Error {
	return &Error{
		Kind:    KindMissingField,
		Field:   field,
		Message: "required value is empty",
	}
}

func Unresolvable(field, key string) *Error {
	msg := "no entity for key"
	if key != "" {
		msg = fmt.Sprintf("no entity for key '%s'", key)
	}
	return &Error{
		Kind:    KindUnresolvable,
		Field:   field,
		Message: msg,
	}
}

func Unresolvablef(field, format string, args ...any) *Error {
	return &Error{
		Kind:    KindUnresolvable,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// Conflict describes a rejected write to an attribute that already holds a
// different value.
func Conflict(field, kept, rejected string) *Error {
	return &Error{
		Kind:    KindConflict,
		Field:   field,
		Message: fmt.Sprintf("kept '%s', discarded '%s'", kept, rejected),
	}
}

// As extracts a row error from err.
func As(err error) (*Error, bool) {
	var rowErr *Error
	if errors.As(err, &rowErr) {
		return rowErr, true
	}
	return nil, false
}

// IsFatal reports whether err must abort the run. Errors outside the row
// taxonomy (store failures, I/O) are always fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	rowErr, ok := As(err)
	if !ok {
		return true
	}
	return rowErr.Fatal()
}

// KindOf returns the kind of a row error, or "" for any other error.
func KindOf(err error) Kind {
	if rowErr, ok := As(err); ok {
		return rowErr.Kind
	}
	return ""
}

// AtLine stamps the source and line onto a row error that does not carry
// them yet. Other errors are returned unchanged.
func AtLine(err error, source string, line int) error {
	rowErr, ok := As(err)
	if !ok {
		return err
	}
	if rowErr.Source == "" {
		rowErr.Source = source
	}
	if rowErr.Line == 0 {
		rowErr.Line = line
	}
	return err
}

// Join collects the recoverable errors of one row. A fatal error among them
// is returned on its own.
func Join(errs ...error) error {
	var kept []error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if IsFatal(err) {
			return err
		}
		kept = append(kept, err)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return errors.Join(kept...)
	}
}

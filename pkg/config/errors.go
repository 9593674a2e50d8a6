package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies configuration diagnostics by cause.
type ErrorKind string

const (
	// ErrStructural indicates a malformed directive shape: a missing "->",
	// a missing "=", an empty required name.
	ErrStructural ErrorKind = "structural"

	// ErrContext indicates a package-scoped directive used while no package
	// context is active.
	ErrContext ErrorKind = "context"

	// ErrReference indicates a referenced configuration file that does not
	// exist or cannot be read.
	ErrReference ErrorKind = "reference"

	// ErrCycle indicates a group-inclusion cycle.
	ErrCycle ErrorKind = "cycle"

	// ErrUnknownDirective indicates a line beginning with a directive sigil
	// that matches no known directive.
	ErrUnknownDirective ErrorKind = "unknown-directive"
)

// Error is a configuration diagnostic. Every tokenizer, parser, resolver,
// and loader failure surfaces as an Error carrying the source file, the
// offending line, and a message. There is no recoverable class: the first
// Error aborts resolution of the current file and, transitively, the whole
// Resolve call.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind `json:"kind"`

	// File is the source file the failure originated from.
	File string `json:"file"`

	// Line is the 1-based line number, or 0 for file-level failures such as
	// a missing file.
	Line int `json:"line"`

	// RawLine is the offending source line before comment stripping. Empty
	// for file-level failures.
	RawLine string `json:"raw_line,omitempty"`

	// Message describes the failure.
	Message string `json:"message"`
}

// Error renders the diagnostic as "<file>:<line>: <message>" followed by an
// indented arrow line carrying the trimmed source text. File-level
// diagnostics have no source line and omit the arrow.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d: %s", e.File, e.Line, e.Message)
	if trimmed := strings.TrimSpace(e.RawLine); trimmed != "" {
		fmt.Fprintf(&b, "\n  -> %s", trimmed)
	}
	return b.String()
}

func newError(kind ErrorKind, file string, line int, rawLine, message string) *Error {
	return &Error{
		Kind:    kind,
		File:    file,
		Line:    line,
		RawLine: rawLine,
		Message: message,
	}
}

func newErrorf(kind ErrorKind, file string, line int, rawLine, format string, args ...any) *Error {
	return newError(kind, file, line, rawLine, fmt.Sprintf(format, args...))
}

// AsError unwraps err into a *Error when one is present in its chain.
func AsError(err error) (*Error, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}

func hasKind(err error, kind ErrorKind) bool {
	cerr, ok := AsError(err)
	return ok && cerr.Kind == kind
}

// IsStructural reports whether err is a malformed-directive diagnostic.
func IsStructural(err error) bool { return hasKind(err, ErrStructural) }

// IsContext reports whether err is a missing-package-context diagnostic.
func IsContext(err error) bool { return hasKind(err, ErrContext) }

// IsReference reports whether err is a missing-file diagnostic.
func IsReference(err error) bool { return hasKind(err, ErrReference) }

// IsCycle reports whether err is a group-cycle diagnostic.
func IsCycle(err error) bool { return hasKind(err, ErrCycle) }

// IsUnknownDirective reports whether err is an unknown-directive diagnostic.
func IsUnknownDirective(err error) bool { return hasKind(err, ErrUnknownDirective) }

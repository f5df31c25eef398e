// Package dataerr defines the typed error taxonomy shared by the loaders, the
// composer and their callers.
package dataerr

import (
	"errors"
	"fmt"
)

// Kind classifies a data error by how the caller is expected to react.
type Kind int

const (
	// Unavailable means a required artifact is missing or unreadable. The
	// caller degrades the affected feature to a simpler view.
	Unavailable Kind = iota + 1
	// Integrity means an artifact is present but structurally invalid, or a
	// cross-artifact join fell below the quality threshold.
	Integrity
	// Configuration means path resolution from external config failed.
	Configuration
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "data unavailable"
	case Integrity:
		return "data integrity"
	case Configuration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is a classified data error. Op names the failing operation
// ("results: load coverage") and Subject the artifact or key involved.
type Error struct {
	Kind    Kind
	Op      string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Subject != "" {
		msg += " [" + e.Subject + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewUnavailable builds a DataUnavailable error.
func NewUnavailable(op, subject string, err error) *Error {
	return &Error{Kind: Unavailable, Op: op, Subject: subject, Err: err}
}

// NewIntegrity builds a DataIntegrity error.
func NewIntegrity(op, subject string, err error) *Error {
	return &Error{Kind: Integrity, Op: op, Subject: subject, Err: err}
}

// Integrityf builds a DataIntegrity error with a formatted cause.
func Integrityf(op, subject, format string, args ...any) *Error {
	return NewIntegrity(op, subject, fmt.Errorf(format, args...))
}

// NewConfiguration builds a Configuration error.
func NewConfiguration(op, subject string, err error) *Error {
	return &Error{Kind: Configuration, Op: op, Subject: subject, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsUnavailable reports whether err (or any error in its chain) is a
// DataUnavailable error.
func IsUnavailable(err error) bool { return KindOf(err) == Unavailable }

// IsIntegrity reports whether err (or any error in its chain) is a
// DataIntegrity error.
func IsIntegrity(err error) bool { return KindOf(err) == Integrity }

// IsConfiguration reports whether err (or any error in its chain) is a
// Configuration error.
func IsConfiguration(err error) bool { return KindOf(err) == Configuration }

// ExceedsThreshold reports whether dropped out of total breaches the
// acceptable-loss fraction. An empty total never breaches; callers treat an
// empty table separately.
func ExceedsThreshold(dropped, total int, maxFraction float64) bool {
	if total <= 0 {
		return false
	}
	return float64(dropped)/float64(total) > maxFraction
}

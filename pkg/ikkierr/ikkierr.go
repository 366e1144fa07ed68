// Package ikkierr defines the error kinds that cross the core's
// boundary (builder, supervisor, schedule, engine). Callers use this
// package's Is/As (or errors.As) against these types rather than
// matching on error strings.
package ikkierr

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// Code identifies one of the error kinds the core's boundary
// (builder, supervisor, schedule, engine) can surface.
type Code int

const (
	_ Code = iota
	CodeNoSuchImage
	CodeConfigInvalid
	CodeCycleDetected
	CodeEngineFailure
	CodeArchiveFailure
	CodeWatcherFailure
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeNoSuchImage:
		return "NoSuchImage"
	case CodeConfigInvalid:
		return "ConfigInvalid"
	case CodeCycleDetected:
		return "CycleDetected"
	case CodeEngineFailure:
		return "EngineFailure"
	case CodeArchiveFailure:
		return "ArchiveFailure"
	case CodeWatcherFailure:
		return "WatcherFailure"
	case CodeInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error carries a Code so calling code can branch on the kind of
// failure without string matching.
type Error struct {
	Code    Code
	Message string
	frame   xerrors.Frame
}

func (e *Error) FormatError(p xerrors.Printer) error {
	p.Printf("%s: %s", e.Code, e.Message)
	e.frame.Format(p)
	return nil
}

func (e *Error) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		frame:   xerrors.Caller(2),
	}
}

// NoSuchImage reports that a command referenced an image absent from
// the loaded configuration.
func NoSuchImage(name string) *Error {
	return newError(CodeNoSuchImage, "image does not exist: %s", name)
}

// ConfigInvalid reports a malformed document or a missing `images`
// section.
func ConfigInvalid(msg string) *Error {
	return newError(CodeConfigInvalid, "%s", msg)
}

// CycleDetected reports that the dependency graph has a cycle.
func CycleDetected() *Error {
	return newError(CodeCycleDetected, "dependency graph has a cycle")
}

// EngineFailure wraps any error returned by the container engine.
func EngineFailure(msg string) *Error {
	return newError(CodeEngineFailure, "%s", msg)
}

// ArchiveFailure reports that tar creation for a build context
// failed.
func ArchiveFailure(msg string) *Error {
	return newError(CodeArchiveFailure, "%s", msg)
}

// WatcherFailure reports that FS watcher setup or event delivery
// failed.
func WatcherFailure(msg string) *Error {
	return newError(CodeWatcherFailure, "%s", msg)
}

// Internal reports an unexpected condition, such as a channel closing
// early.
func Internal(msg string) *Error {
	return newError(CodeInternal, "%s", msg)
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if xerrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As extracts the *Error from err, the way xerrors.As/errors.As would,
// for callers that need the Code and Message rather than a yes/no
// check against one code.
func As(err error, target **Error) bool {
	return xerrors.As(err, target)
}

// WrapTop wraps err for the sake of showing a stack trace at the
// process boundary.
func WrapTop(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}

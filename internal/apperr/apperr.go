// Package apperr is the categorical error taxonomy shared by the Ledger,
// Transaction Record, and Payment Orchestrator services. It replaces the
// exception-for-control-flow pattern of the source system with a sum-type
// error union (see DESIGN.md, "Standard-library-only sections"):
// stores and engines return an *Error built from one of the categories
// below, and the RPC framing layer pattern-matches the category to a wire
// status code. No package outside apperr needs to know about HTTP status
// codes or gRPC codes to produce a correctly classified error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Category is one of the six error categories from the taxonomy. Each
// category maps to exactly one wire status code; FailedPrecondition and
// AlreadyExists share 409. See StatusFor.
type Category string

const (
	NotFound          Category = "NOT_FOUND"
	InvalidArgument   Category = "INVALID_ARGUMENT"
	FailedPrecondition Category = "FAILED_PRECONDITION"
	AlreadyExists     Category = "ALREADY_EXISTS"
	DeadlineExceeded  Category = "DEADLINE_EXCEEDED"
	Internal          Category = "INTERNAL"
)

// Error is a categorized application error. Message is safe to surface to
// callers; Cause, if set, is logged but never serialized onto the wire.
type Error struct {
	Category Category
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error directly.
func New(category Category, message string) *Error {
	return &Error{Category: category, Message: message}
}

// Wrap builds an *Error around a lower-level cause, keeping the cause for
// logs without leaking its message to the wire by default.
func Wrap(category Category, message string, cause error) *Error {
	return &Error{Category: category, Message: message, Cause: cause}
}

func newf(category Category, format string, args ...interface{}) *Error {
	return &Error{Category: category, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return newf(NotFound, format, args...)
}

func InvalidArgumentf(format string, args ...interface{}) *Error {
	return newf(InvalidArgument, format, args...)
}

func FailedPreconditionf(format string, args ...interface{}) *Error {
	return newf(FailedPrecondition, format, args...)
}

func AlreadyExistsf(format string, args ...interface{}) *Error {
	return newf(AlreadyExists, format, args...)
}

func DeadlineExceededf(format string, args ...interface{}) *Error {
	return newf(DeadlineExceeded, format, args...)
}

func Internalf(format string, args ...interface{}) *Error {
	return newf(Internal, format, args...)
}

// As extracts an *Error from err, if any exists in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CategoryOf returns the category of err, defaulting to Internal for
// errors that were never classified through this package.
func CategoryOf(err error) Category {
	if e, ok := As(err); ok {
		return e.Category
	}
	return Internal
}

// StatusFor maps a Category to its wire HTTP status, per the RPC framing
// layer's status code mapping (spec §4.3 / §6).
func StatusFor(c Category) int {
	switch c {
	case NotFound:
		return http.StatusNotFound
	case InvalidArgument:
		return http.StatusBadRequest
	case FailedPrecondition:
		return http.StatusConflict
	case AlreadyExists:
		return http.StatusConflict
	case DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus returns the wire HTTP status for err, defaulting to 500 for
// unclassified errors.
func HTTPStatus(err error) int {
	return StatusFor(CategoryOf(err))
}

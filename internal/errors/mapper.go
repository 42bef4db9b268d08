// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Kind buckets domain errors the way callers map them to transport status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindDeadlineExceeded
	KindCanceled
)

// Error is a domain-tagged error. Code is stable for clients, Message is human readable.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on Code so sentinel-style comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// InvalidArgument creates an error for bad input.
func InvalidArgument(code, msg string) error { return newErr(KindInvalidArgument, code, msg) }

// Unauthorized creates an error for missing or invalid credentials.
func Unauthorized(code, msg string) error { return newErr(KindUnauthorized, code, msg) }

// Forbidden creates an error for authenticated callers lacking permission.
func Forbidden(code, msg string) error { return newErr(KindForbidden, code, msg) }

// NotFound creates an error for a missing entity.
func NotFound(code, msg string) error { return newErr(KindNotFound, code, msg) }

// AlreadyExists creates a conflict error.
func AlreadyExists(code, msg string) error { return newErr(KindConflict, code, msg) }

// RateLimited creates an error for throttled operations.
func RateLimited(code, msg string) error { return newErr(KindRateLimited, code, msg) }

// Internal wraps an unexpected failure. The cause is kept for logs only.
func Internal(cause error) error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: "internal server error", cause: cause}
}

// Map converts repo/infra errors into domain errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return de
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return newErr(KindNotFound, "NOT_FOUND", "record not found")

	case errors.Is(err, gorm.ErrDuplicatedKey):
		return newErr(KindConflict, "DUPLICATE", "record already exists")

	case errors.Is(err, context.DeadlineExceeded):
		return newErr(KindDeadlineExceeded, "TIMEOUT", "request timed out")

	case errors.Is(err, context.Canceled):
		return newErr(KindCanceled, "CANCELED", "request was canceled")

	default:
		return Internal(err)
	}
}

// As extracts the domain error, mapping infrastructure errors first.
func As(err error) *Error {
	var de *Error
	if errors.As(Map(err), &de) {
		return de
	}
	return nil
}

// HTTPStatus returns the HTTP status bucket for err.
func HTTPStatus(err error) int {
	de := As(err)
	if de == nil {
		return http.StatusOK
	}
	switch de.Kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus converts err into a gRPC status error.
func GRPCStatus(err error) error {
	de := As(err)
	if de == nil {
		return nil
	}
	var c codes.Code
	switch de.Kind {
	case KindInvalidArgument:
		c = codes.InvalidArgument
	case KindUnauthorized:
		c = codes.Unauthenticated
	case KindForbidden:
		c = codes.PermissionDenied
	case KindNotFound:
		c = codes.NotFound
	case KindConflict:
		c = codes.AlreadyExists
	case KindRateLimited:
		c = codes.ResourceExhausted
	case KindDeadlineExceeded:
		c = codes.DeadlineExceeded
	case KindCanceled:
		c = codes.Canceled
	default:
		c = codes.Internal
	}
	return status.Error(c, de.Message)
}

package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error classifies Firestore failures so callers can treat them as repository errors.
type Error struct {
	op   string
	err  error
	code codes.Code
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the document is missing.
func (e *Error) IsNotFound() bool {
	return e != nil && e.code == codes.NotFound
}

// IsConflict reports whether a precondition or concurrent write failed.
func (e *Error) IsConflict() bool {
	if e == nil {
		return false
	}
	switch e.code {
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		return true
	}
	return false
}

// IsUnavailable reports whether the backend is temporarily unreachable.
func (e *Error) IsUnavailable() bool {
	if e == nil {
		return false
	}
	switch e.code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return true
	}
	return false
}

// WrapError annotates a Firestore error with the operation name. Cancellation is returned
// as the plain context error.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	code := status.Code(err)
	switch code {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.op == "" {
			existing.op = op
		}
		return existing
	}
	return &Error{op: op, err: err, code: code}
}

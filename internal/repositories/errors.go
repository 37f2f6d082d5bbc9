package repositories

import (
	"errors"
	"fmt"
)

// StoreErrorCode classifies failures of the in-process and file backed stores.
type StoreErrorCode string

const (
	// StoreErrorNotFound indicates the requested record does not exist.
	StoreErrorNotFound StoreErrorCode = "not_found"
	// StoreErrorInvalidKey indicates the namespace or key cannot be stored.
	StoreErrorInvalidKey StoreErrorCode = "invalid_key"
	// StoreErrorIO indicates the backend failed to read or write.
	StoreErrorIO StoreErrorCode = "io"
)

// StoreError implements RepositoryError for non-Firestore backends.
type StoreError struct {
	Op   string
	Code StoreErrorCode
	Err  error
}

var _ RepositoryError = (*StoreError)(nil)

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Code)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the record is missing.
func (e *StoreError) IsNotFound() bool { return e != nil && e.Code == StoreErrorNotFound }

// IsConflict is never reported by these stores; the last write wins.
func (e *StoreError) IsConflict() bool { return false }

// IsUnavailable reports whether the backend failed.
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Code == StoreErrorIO }

// NewNotFoundError builds a not-found StoreError.
func NewNotFoundError(op string) error {
	return &StoreError{Op: op, Code: StoreErrorNotFound}
}

// IsNotFound reports whether err is a RepositoryError describing a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsUnavailable reports whether err is a RepositoryError describing a backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

package namespace

import (
	"errors"
	"fmt"
)

// StoreStatus is the outcome category of a store operation.
//
// Callers branch on the status instead of inspecting error strings:
// KeyNotExist and KeyAlreadyExist are expected results for existence checks,
// while InternalError and StorageFatalError signal bugs and engine failures.
type StoreStatus int

const (
	// OK means the operation was applied, or the record was found and decoded.
	OK StoreStatus = iota

	// KeyNotExist means the point lookup, delete or rename source found no record.
	KeyNotExist

	// KeyAlreadyExist means an insert-style operation hit an occupied key.
	KeyAlreadyExist

	// InternalError means the engine succeeded but the payload failed to
	// decode or an invariant was violated.
	InternalError

	// StorageFatalError means the engine itself failed.
	StorageFatalError
)

func (s StoreStatus) String() string {
	switch s {
	case OK:
		return "OK"
	case KeyNotExist:
		return "KeyNotExist"
	case KeyAlreadyExist:
		return "KeyAlreadyExist"
	case InternalError:
		return "InternalError"
	case StorageFatalError:
		return "StorageFatalError"
	default:
		return fmt.Sprintf("StoreStatus(%d)", int(s))
	}
}

// StoreError is the error returned by every failed store operation.
type StoreError struct {
	// Status is the outcome category
	Status StoreStatus

	// Key is the store key the operation targeted (may be empty for scans)
	Key string

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Status.String()
	if e.Key != "" {
		msg += " (" + describeKey(e.Key) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a StoreError with the same status, so
// errors.Is(err, ErrKeyNotExist) works regardless of key or cause.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Key == "" && t.Err == nil && t.Status == e.Status
}

// Status sentinels for errors.Is.
var (
	ErrKeyNotExist     = &StoreError{Status: KeyNotExist}
	ErrKeyAlreadyExist = &StoreError{Status: KeyAlreadyExist}
	ErrInternal        = &StoreError{Status: InternalError}
	ErrStorageFatal    = &StoreError{Status: StorageFatalError}
)

func newError(status StoreStatus, key []byte, err error) *StoreError {
	return &StoreError{Status: status, Key: string(key), Err: err}
}

// StatusOf maps an error returned by the store back to its status.
// A nil error is OK; errors that are not StoreErrors count as InternalError.
func StatusOf(err error) StoreStatus {
	if err == nil {
		return OK
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Status
	}
	return InternalError
}

// IsNotExist reports whether err carries KeyNotExist.
func IsNotExist(err error) bool {
	return StatusOf(err) == KeyNotExist
}

// IsAlreadyExist reports whether err carries KeyAlreadyExist.
func IsAlreadyExist(err error) bool {
	return StatusOf(err) == KeyAlreadyExist
}

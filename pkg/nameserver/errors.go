package nameserver

import (
	"errors"

	"github.com/marmos91/nameserver/pkg/store/namespace"
)

// PathError is a domain error from a path-level operation.
//
// These are namespace errors (no such file, directory not empty, ...) as
// opposed to storage failures, which are wrapped with ErrIO and keep the
// underlying *namespace.StoreError reachable through Unwrap.
type PathError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the path the operation targeted
	Path string

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PathError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a path error.
type ErrorCode int

const (
	// ErrNotFound indicates the path does not exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates the target path is taken
	ErrAlreadyExists

	// ErrNotDirectory indicates a path component is not a directory
	ErrNotDirectory

	// ErrIsDirectory indicates a file operation hit a directory
	ErrIsDirectory

	// ErrNotEmpty indicates a directory still has children
	ErrNotEmpty

	// ErrInvalidArgument indicates a malformed path or length
	ErrInvalidArgument

	// ErrBusy indicates the file still has snapshots
	ErrBusy

	// ErrIO indicates the namespace store failed
	ErrIO
)

var codeMessages = map[ErrorCode]string{
	ErrNotFound:        "no such file or directory",
	ErrAlreadyExists:   "file exists",
	ErrNotDirectory:    "not a directory",
	ErrIsDirectory:     "is a directory",
	ErrNotEmpty:        "directory not empty",
	ErrInvalidArgument: "invalid argument",
	ErrBusy:            "file has snapshots",
	ErrIO:              "namespace store error",
}

func newPathError(code ErrorCode, path string) *PathError {
	return &PathError{Code: code, Message: codeMessages[code], Path: path}
}

// storeError translates a namespace store error for path.
func storeError(err error, path string) error {
	if err == nil {
		return nil
	}
	switch namespace.StatusOf(err) {
	case namespace.KeyNotExist:
		return newPathError(ErrNotFound, path)
	case namespace.KeyAlreadyExist:
		return newPathError(ErrAlreadyExists, path)
	default:
		e := newPathError(ErrIO, path)
		e.Err = err
		return e
	}
}

// CodeOf returns the code of a PathError, and false for other errors.
func CodeOf(err error) (ErrorCode, bool) {
	var pathErr *PathError
	if errors.As(err, &pathErr) {
		return pathErr.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is a PathError with code ErrNotFound.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotFound
}

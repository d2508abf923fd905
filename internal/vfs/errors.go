package vfs

import (
	"errors"
	"strings"
)

var (
	ErrInvalidPath          = errors.New("invalid path")
	ErrNotFound             = errors.New("not found")
	ErrParentNotFound       = errors.New("parent folder not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrNotFolder            = errors.New("not a folder")
	ErrIO                   = errors.New("io error")
	ErrStorageUninitialized = errors.New("storage not initialized")
)

// PathError records the operation and path that caused a filesystem error.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "vfs: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

func pathErr(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// ioErr wraps a storage failure so it matches ErrIO while keeping the cause.
type ioErr struct{ cause error }

func (e ioErr) Error() string   { return ErrIO.Error() + ": " + e.cause.Error() }
func (e ioErr) Unwrap() []error { return []error{ErrIO, e.cause} }

func wrapIO(op, path string, cause error) error {
	return pathErr(op, path, ioErr{cause: cause})
}

// Describe renders err as the one-line reason shown to shell users.
func Describe(err error) string {
	var pe *PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	for _, kind := range []error{
		ErrInvalidPath, ErrNotFound, ErrParentNotFound, ErrAlreadyExists,
		ErrNotFolder, ErrStorageUninitialized,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return strings.TrimSpace(err.Error())
}

package db

import (
	"errors"
	"fmt"
)

var (
	ErrDBExists       = errors.New("database exists")
	ErrDBNotFound     = errors.New("database not found")
	ErrDBCorrupted    = errors.New("database corrupted")
	ErrRecordNotFound = errors.New("no record found")
	ErrRecordNoID     = errors.New("no id provided")
	ErrInvalidSortBy  = errors.New("invalid sort by")
	ErrInvalidPage    = errors.New("invalid limit or offset")
)

// StorageError reports a failure of the durable store. It is always
// propagated to the caller and never retried automatically.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr wraps err as a StorageError, leaving nil untouched.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *StorageError
	if errors.As(err, &se) {
		return err
	}

	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err came from the durable store.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

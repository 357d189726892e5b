package store

import (
	"errors"
	"fmt"
)

// StoreError indicates a persistence-layer failure. Batch writes are
// all-or-nothing, so a StoreError never means a half-written batch.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s): %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err (or any error in its chain) is a
// StoreError.
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}

func storeError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

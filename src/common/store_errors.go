package common

import (
	"errors"
	"fmt"
)

// StoreErrType enumerates the errors returned by stores.
type StoreErrType uint32

const (
	// KeyNotFound means the requested item is not stored.
	KeyNotFound StoreErrType = iota
	// Empty means the store holds nothing yet.
	Empty
	// KeyAlreadyExists means the item is already stored.
	KeyAlreadyExists
	// MissingParent means an item cannot be stored before its parent.
	MissingParent
)

// StoreErr is returned by stores. It records the kind of data and the key
// involved.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr creates a StoreErr.
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error implements the error interface.
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case Empty:
		m = "Empty"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	case MissingParent:
		m = "Missing Parent"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is, or wraps, a StoreErr and that its code
// matches the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	var storeErr StoreErr
	return errors.As(err, &storeErr) && storeErr.errType == t
}

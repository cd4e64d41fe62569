package mapper

import (
	"errors"
	"fmt"
)

var (
	// ErrAdapterNotConfigured is returned when a collection is requested
	// before a default adapter was configured
	ErrAdapterNotConfigured = errors.New("adapter not configured")

	// ErrUnknownCollection is returned when no resolved document uses a collection name
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrUncomparableAdapter is returned for adapters that cannot identify a
	// cached collection, such as struct values holding maps or slices
	ErrUncomparableAdapter = errors.New("adapter is not comparable")
)

// AdapterNotConfiguredError reports a missing default adapter
type AdapterNotConfiguredError struct{}

// Error implements the error interface
func (e *AdapterNotConfiguredError) Error() string {
	return "adapter not configured: call Configure before requesting collections"
}

// Unwrap returns ErrAdapterNotConfigured
func (e *AdapterNotConfiguredError) Unwrap() error {
	return ErrAdapterNotConfigured
}

// UnknownCollectionError reports a collection name without a document
type UnknownCollectionError struct {
	Name string
}

// Error implements the error interface
func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("no document is mapped to %q collection", e.Name)
}

// Unwrap returns ErrUnknownCollection
func (e *UnknownCollectionError) Unwrap() error {
	return ErrUnknownCollection
}

// UncomparableAdapterError reports an adapter value that cannot be used as a
// cache key. Pass a pointer to the adapter instead.
type UncomparableAdapterError struct {
	Adapter any
}

// Error implements the error interface
func (e *UncomparableAdapterError) Error() string {
	return fmt.Sprintf("adapter of type %T is not comparable: use a pointer adapter", e.Adapter)
}

// Unwrap returns ErrUncomparableAdapter
func (e *UncomparableAdapterError) Unwrap() error {
	return ErrUncomparableAdapter
}

// IsAdapterNotConfigured returns true if the error is ErrAdapterNotConfigured
func IsAdapterNotConfigured(err error) bool {
	return errors.Is(err, ErrAdapterNotConfigured)
}

package collection

import (
	"errors"
)

var (
	// ErrNotFound is returned when a lookup matches no document
	ErrNotFound = errors.New("document not found")

	// ErrMutatedCollection is returned when an identity-scoped lookup or a
	// write goes through a collection that already carries query state
	ErrMutatedCollection = errors.New("collection already mutated, use the original collection instance")

	// ErrDuplicateID is returned when creating a document whose id is taken
	ErrDuplicateID = errors.New("document id already exists")

	// ErrMissingID is returned when updating or deleting a document without an id
	ErrMissingID = errors.New("document has no id")
)

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsMutated returns true if the error is ErrMutatedCollection
func IsMutated(err error) bool {
	return errors.Is(err, ErrMutatedCollection)
}

// IsDuplicateID returns true if the error is ErrDuplicateID
func IsDuplicateID(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}

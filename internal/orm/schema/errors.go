package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyMapped is returned when a type's collection or id key is declared twice
	ErrAlreadyMapped = errors.New("type already mapped")

	// ErrDuplicateReference is returned when a reference field is declared twice on a type
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrUndecoratedType is returned when a type lacks a complete document declaration
	ErrUndecoratedType = errors.New("type not declared as a document")

	// ErrInvalidDeclaration is returned for declarations with empty names or nil types
	ErrInvalidDeclaration = errors.New("invalid declaration")
)

// AlreadyMappedError reports a second collection declaration for a type
type AlreadyMappedError struct {
	Type       TypeID
	Collection string
}

// Error implements the error interface
func (e *AlreadyMappedError) Error() string {
	return fmt.Sprintf("type %q already mapped to %q collection", typeName(e.Type), e.Collection)
}

// Unwrap returns ErrAlreadyMapped
func (e *AlreadyMappedError) Unwrap() error {
	return ErrAlreadyMapped
}

// DuplicateReferenceError reports a second reference declaration for a field
type DuplicateReferenceError struct {
	Type     TypeID
	Field    string
	Referent TypeID
}

// Error implements the error interface
func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("field %q of %q already has reference to %q",
		e.Field, typeName(e.Type), typeName(e.Referent))
}

// Unwrap returns ErrDuplicateReference
func (e *DuplicateReferenceError) Unwrap() error {
	return ErrDuplicateReference
}

// UndecoratedTypeError reports a type without a complete document declaration
type UndecoratedTypeError struct {
	Type TypeID
}

// Error implements the error interface
func (e *UndecoratedTypeError) Error() string {
	return fmt.Sprintf("type %q not declared as a document", typeName(e.Type))
}

// Unwrap returns ErrUndecoratedType
func (e *UndecoratedTypeError) Unwrap() error {
	return ErrUndecoratedType
}

// IsAlreadyMapped returns true if the error is ErrAlreadyMapped
func IsAlreadyMapped(err error) bool {
	return errors.Is(err, ErrAlreadyMapped)
}

// IsDuplicateReference returns true if the error is ErrDuplicateReference
func IsDuplicateReference(err error) bool {
	return errors.Is(err, ErrDuplicateReference)
}

// IsUndecoratedType returns true if the error is ErrUndecoratedType
func IsUndecoratedType(err error) bool {
	return errors.Is(err, ErrUndecoratedType)
}

func typeName(t TypeID) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

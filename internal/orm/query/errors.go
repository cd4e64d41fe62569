package query

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperator is returned for operators outside the supported set
	ErrUnsupportedOperator = errors.New("unsupported where operator")

	// ErrUnsupportedDirection is returned for unknown order directions
	ErrUnsupportedDirection = errors.New("unsupported order direction")
)

// UnsupportedOperatorError reports a predicate with an unknown operator
type UnsupportedOperatorError struct {
	Operator Operator
	Key      string
}

// Error implements the error interface
func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported where operator %q on %q", string(e.Operator), e.Key)
}

// Unwrap returns ErrUnsupportedOperator
func (e *UnsupportedOperatorError) Unwrap() error {
	return ErrUnsupportedOperator
}

// UnsupportedDirectionError reports an ordering clause with an unknown direction
type UnsupportedDirectionError struct {
	Direction Direction
	Key       string
}

// Error implements the error interface
func (e *UnsupportedDirectionError) Error() string {
	return fmt.Sprintf("unsupported order direction %q on %q", string(e.Direction), e.Key)
}

// Unwrap returns ErrUnsupportedDirection
func (e *UnsupportedDirectionError) Unwrap() error {
	return ErrUnsupportedDirection
}

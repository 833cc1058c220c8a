package expense

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("expense: not found")

// Kind is the machine-readable category of a gateway failure.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindConnectivity   Kind = "connectivity"
	KindNotFound       Kind = "not_found"
	KindConstraint     Kind = "constraint"
	KindSchema         Kind = "schema"
	KindValidation     Kind = "validation"
	KindGeneric        Kind = "generic"
)

type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf reports the failure category carried by err. Errors that did not
// cross the gateway boundary are reported as generic.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindGeneric
}

func validationError(op, message string) error {
	return &Error{Op: op, Kind: KindValidation, Err: errors.New(message)}
}

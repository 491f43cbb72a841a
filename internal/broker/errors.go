package broker

import (
	"errors"
	"fmt"

	"bitflyer-broker/internal/core"
)

type Kind string

const (
	KindTransport  Kind = "transport"
	KindDecode     Kind = "decode"
	KindValidation Kind = "validation"
)

// OpError is the only error type returned by Broker operations.
type OpError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("broker %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	return []error{e.Err, e.Kind.sentinel()}
}

func (k Kind) sentinel() error {
	switch k {
	case KindDecode:
		return core.ErrDecode
	case KindValidation:
		return core.ErrValidation
	default:
		return core.ErrTransport
	}
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, core.ErrValidation):
		return KindValidation
	case errors.Is(err, core.ErrDecode):
		return KindDecode
	default:
		return KindTransport
	}
}

// Succeeded collapses an operation result to the boolean success flag.
func Succeeded(err error) bool {
	return err == nil
}

// KindOf reports the fault category of an operation error, or "" for nil
// and errors not produced by a Broker.
func KindOf(err error) Kind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return ""
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrValidation}, args...)...)
}

func decodef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrDecode}, args...)...)
}

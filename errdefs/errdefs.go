// Package errdefs defines the error kinds surfaced by the join engines.
// Callers classify with errors.Is against the exported sentinels.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBuffer a destination cannot hold a value of the claimed size.
	ErrInsufficientBuffer = errors.New(`insufficient buffer`)

	// ErrDataCorruption input data or input ordering is not what the engine was promised.
	ErrDataCorruption = errors.New(`data corruption`)

	// ErrInvalidArgument a component was configured with values it cannot run with.
	ErrInvalidArgument = errors.New(`invalid argument`)
)

type kindError struct {
	kind    error
	message string
	cause   error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf(`%s: %s: %s`, e.kind, e.message, e.cause)
	}

	return fmt.Sprintf(`%s: %s`, e.kind, e.message)
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func InsufficientBuffer(format string, args ...interface{}) error {
	return &kindError{kind: ErrInsufficientBuffer, message: fmt.Sprintf(format, args...)}
}

func DataCorruption(format string, args ...interface{}) error {
	return &kindError{kind: ErrDataCorruption, message: fmt.Sprintf(format, args...)}
}

// DataCorruptionWithCause keeps err reachable through errors.Unwrap.
func DataCorruptionWithCause(err error, format string, args ...interface{}) error {
	return &kindError{kind: ErrDataCorruption, message: fmt.Sprintf(format, args...), cause: err}
}

func InvalidArgument(format string, args ...interface{}) error {
	return &kindError{kind: ErrInvalidArgument, message: fmt.Sprintf(format, args...)}
}

func IsInsufficientBuffer(err error) bool {
	return errors.Is(err, ErrInsufficientBuffer)
}

func IsDataCorruption(err error) bool {
	return errors.Is(err, ErrDataCorruption)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

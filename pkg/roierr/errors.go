// Package roierr defines the error conditions shared by the ROI conversion
// packages. Every failure returned by the bridge wraps one of the sentinels
// below so callers can classify it with errors.Is.
package roierr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks a wrong input: a type mismatch, an
	// unconvertible node, or missing context such as an active image.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIllegalState marks a contract violation by the caller, for example
	// an occupied output cache slot.
	ErrIllegalState = errors.New("illegal state")

	// ErrUnsupported marks an operation a value cannot perform, such as set
	// algebra on text.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrBigResult marks a numeric conversion whose result does not fit.
	ErrBigResult = errors.New("result out of range")
)

// InvalidArgument formats a message wrapped in ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// IllegalState formats a message wrapped in ErrIllegalState.
func IllegalState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, fmt.Sprintf(format, args...))
}

// Unsupported formats a message wrapped in ErrUnsupported.
func Unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// TypeMismatch reports that a value of one type was handed where another was
// expected.
func TypeMismatch(expected, received any) error {
	return InvalidArgument("expected %v but received %v", expected, received)
}

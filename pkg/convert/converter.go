// Package convert maps values between the legacy ROI model and mask
// predicates. Each Converter declares exact input and output types and a
// priority; a Registry picks the highest priority converter able to handle
// a request.
package convert

import (
	"fmt"

	"github.com/menta2k/roi-bridge/pkg/roierr"
)

// Priorities, from most to least specific.
const (
	PriorityFirst         = 2000000
	PriorityExtremelyHigh = 1000000
	PriorityVeryHigh      = 10000
	PriorityHigh          = 100
	PriorityNormal        = 0
	PriorityLow           = -100
)

// Func performs a conversion. src has already been checked against the
// converter's input type.
type Func func(src any) (any, error)

// Converter converts values of one declared type into another.
type Converter struct {
	Name     string
	Input    Type
	Output   Type
	Priority int
	// Accept optionally narrows the inputs beyond the declared type.
	Accept func(src any) bool
	Fn     Func
}

func (c *Converter) InputType() Type  { return c.Input }
func (c *Converter) OutputType() Type { return c.Output }

// CanConvert reports whether c accepts src and produces something
// assignable to dest.
func (c *Converter) CanConvert(src any, dest Type) bool {
	if !TypeOf(src).AssignableTo(c.Input) || !c.Output.AssignableTo(dest) {
		return false
	}
	return c.Accept == nil || c.Accept(src)
}

// Convert runs the conversion, failing with ErrInvalidArgument when src or
// dest do not match the declared types.
func (c *Converter) Convert(src any, dest Type) (any, error) {
	if got := TypeOf(src); !got.AssignableTo(c.Input) {
		return nil, roierr.TypeMismatch(c.Input, got)
	}
	if !c.Output.AssignableTo(dest) {
		return nil, roierr.TypeMismatch(dest, c.Output)
	}
	if c.Accept != nil && !c.Accept(src) {
		return nil, roierr.InvalidArgument("%s does not accept %T", c.Name, src)
	}
	out, err := c.Fn(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	return out, nil
}

func (c *Converter) String() string {
	return fmt.Sprintf("%s (%s -> %s, priority %d)", c.Name, c.Input, c.Output, c.Priority)
}

package mapping

import (
	"fmt"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/roierr"
)

// Wrapper is implemented by values that only delegate to another ROI or
// predicate. A wrapper is never itself a ROI.
type Wrapper interface {
	Unwrap() any
}

// Unwrap follows wrappers until it reaches a legacy ROI or a predicate.
// Anything else fails with ErrInvalidArgument.
func Unwrap(v any) (any, error) {
	for depth := 0; ; depth++ {
		w, ok := v.(Wrapper)
		if !ok {
			break
		}
		if depth > maxUnwrapDepth {
			return nil, roierr.InvalidArgument("wrapper chain too deep at %T", v)
		}
		v = w.Unwrap()
	}
	switch v.(type) {
	case *legacy.Roi, geom.Predicate:
		if v == (*legacy.Roi)(nil) {
			return nil, roierr.InvalidArgument("nil ROI")
		}
		return v, nil
	}
	return nil, roierr.InvalidArgument("%T is not a ROI type", v)
}

// UnwrapRoi unwraps v and requires a legacy ROI.
func UnwrapRoi(v any) (*legacy.Roi, error) {
	u, err := Unwrap(v)
	if err != nil {
		return nil, err
	}
	roi, ok := u.(*legacy.Roi)
	if !ok {
		return nil, roierr.TypeMismatch("*legacy.Roi", fmt.Sprintf("%T", u))
	}
	return roi, nil
}

const maxUnwrapDepth = 64

package geom

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/roierr"
)

// Op is a boolean set operation.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpXor
	OpMinus
	OpNegate
)

func (o Op) String() string {
	switch o {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpMinus:
		return "minus"
	case OpNegate:
		return "negate"
	}
	return "unknown"
}

// Composite is the result of a set operation over other predicates.
type Composite struct {
	Op       Op
	Operands []Predicate
}

func (c *Composite) Kind() Kind             { return KindComposite }
func (c *Composite) Boundary() BoundaryType { return Unspecified }

func (c *Composite) Test(p r2.Point) bool {
	switch c.Op {
	case OpAnd:
		return c.Operands[0].Test(p) && c.Operands[1].Test(p)
	case OpOr:
		return c.Operands[0].Test(p) || c.Operands[1].Test(p)
	case OpXor:
		return c.Operands[0].Test(p) != c.Operands[1].Test(p)
	case OpMinus:
		return c.Operands[0].Test(p) && !c.Operands[1].Test(p)
	case OpNegate:
		return !c.Operands[0].Test(p)
	}
	return false
}

// Bounds of a negation are unbounded.
func (c *Composite) Bounds() r2.Rect {
	switch c.Op {
	case OpAnd:
		return c.Operands[0].Bounds().Intersection(c.Operands[1].Bounds())
	case OpMinus:
		return c.Operands[0].Bounds()
	case OpNegate:
		return r2.Rect{X: r1.Interval{Lo: negInf, Hi: posInf}, Y: r1.Interval{Lo: negInf, Hi: posInf}}
	}
	return c.Operands[0].Bounds().Union(c.Operands[1].Bounds())
}

// And returns the intersection of a and b.
func And(a, b Predicate) (Predicate, error) { return combine(OpAnd, a, b) }

// Or returns the union of a and b.
func Or(a, b Predicate) (Predicate, error) { return combine(OpOr, a, b) }

// Xor returns the symmetric difference of a and b.
func Xor(a, b Predicate) (Predicate, error) { return combine(OpXor, a, b) }

// Minus returns the points of a not in b.
func Minus(a, b Predicate) (Predicate, error) { return combine(OpMinus, a, b) }

// Negate returns the complement of a.
func Negate(a Predicate) (Predicate, error) {
	if err := checkAlgebra(OpNegate, a); err != nil {
		return nil, err
	}
	return &Composite{Op: OpNegate, Operands: []Predicate{a}}, nil
}

func combine(op Op, a, b Predicate) (Predicate, error) {
	if err := checkAlgebra(op, a, b); err != nil {
		return nil, err
	}
	return &Composite{Op: op, Operands: []Predicate{a, b}}, nil
}

func checkAlgebra(op Op, ps ...Predicate) error {
	for _, p := range ps {
		if p == nil {
			return roierr.InvalidArgument("%s: nil operand", op)
		}
		if p.Kind() == KindText {
			return roierr.Unsupported("%s: text is not a region", op)
		}
	}
	return nil
}

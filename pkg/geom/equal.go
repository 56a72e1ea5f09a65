package geom

import (
	"bytes"
	"math"

	"github.com/golang/geo/r2"
)

// ApproxEqual reports whether a and b describe the same geometry within tol.
// Composites compare structurally.
func ApproxEqual(a, b Predicate, tol float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	a, b = Resolve(a), Resolve(b)
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Box:
		y := b.(*Box)
		return pointEq(x.Min, y.Min, tol) && pointEq(x.Max, y.Max, tol)
	case *Ellipsoid:
		y := b.(*Ellipsoid)
		return pointEq(x.Center, y.Center, tol) && pointEq(x.Radii, y.Radii, tol)
	case *Polygon:
		return pathEq(x.Vertices, b.(*Polygon).Vertices, tol)
	case *Polyline:
		return pathEq(x.Vertices, b.(*Polyline).Vertices, tol)
	case *Points:
		return pathEq(x.Points, b.(*Points).Points, tol)
	case *Line:
		y := b.(*Line)
		return pointEq(x.A, y.A, tol) && pointEq(x.B, y.B, tol)
	case *Mask:
		y := b.(*Mask)
		if x.Pix == nil || y.Pix == nil {
			return x.Pix == y.Pix
		}
		return x.Pix.Rect == y.Pix.Rect && bytes.Equal(maskBits(x), maskBits(y))
	case *Region:
		y := b.(*Region)
		if x.Closed != y.Closed || len(x.Contours) != len(y.Contours) {
			return false
		}
		for i := range x.Contours {
			if !pathEq(x.Contours[i], y.Contours[i], tol) {
				return false
			}
		}
		return true
	case *Text:
		y := b.(*Text)
		return x.Content == y.Content && pointEq(x.Anchor, y.Anchor, tol)
	case *Composite:
		y := b.(*Composite)
		if x.Op != y.Op || len(x.Operands) != len(y.Operands) {
			return false
		}
		for i := range x.Operands {
			if !ApproxEqual(x.Operands[i], y.Operands[i], tol) {
				return false
			}
		}
		return true
	}
	return pointEq(a.Bounds().Lo(), b.Bounds().Lo(), tol) && pointEq(a.Bounds().Hi(), b.Bounds().Hi(), tol)
}

// Delegate is implemented by predicates whose geometry lives in another
// predicate, such as server-backed shapes.
type Delegate interface {
	Geometry() Predicate
}

// Resolve follows delegates down to the concrete geometry.
func Resolve(p Predicate) Predicate {
	for {
		d, ok := p.(Delegate)
		if !ok {
			return p
		}
		inner := d.Geometry()
		if inner == nil {
			return p
		}
		p = inner
	}
}

func pointEq(a, b r2.Point, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

func pathEq(a, b []r2.Point, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pointEq(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

func maskBits(m *Mask) []byte {
	r := m.Pix.Rect
	out := make([]byte, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.Pix.AlphaAt(x, y).A > 0 {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

// Package geom implements the mask predicates that serve as the common
// currency between legacy ROIs and server shape records. Predicates live in
// real-valued image space and carry geometry only: no style, stack position
// or text (with the exception of Text, which exists purely to carry a label
// through conversions).
package geom

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// Kind enumerates the concrete predicate shapes.
type Kind int

const (
	KindBox Kind = iota
	KindEllipsoid
	KindPolygon
	KindPolyline
	KindPoints
	KindLine
	KindMask
	KindRegion
	KindComposite
	KindText
)

var kindNames = map[Kind]string{
	KindBox:       "box",
	KindEllipsoid: "ellipsoid",
	KindPolygon:   "polygon",
	KindPolyline:  "polyline",
	KindPoints:    "points",
	KindLine:      "line",
	KindMask:      "mask",
	KindRegion:    "region",
	KindComposite: "composite",
	KindText:      "text",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// BoundaryType describes whether points on the boundary test true.
type BoundaryType int

const (
	Closed BoundaryType = iota
	Open
	Unspecified
)

// Predicate is a boolean-testable region in real space.
type Predicate interface {
	Kind() Kind
	Test(p r2.Point) bool
	Bounds() r2.Rect
	Boundary() BoundaryType
}

// Epsilon is the tolerance used for on-path tests and geometry comparison.
const Epsilon = 1e-9

// Box is an axis-aligned rectangle.
type Box struct {
	Min, Max r2.Point
}

func NewBox(min, max r2.Point) *Box {
	return &Box{Min: min, Max: max}
}

func (b *Box) Kind() Kind             { return KindBox }
func (b *Box) Boundary() BoundaryType { return Closed }
func (b *Box) Bounds() r2.Rect        { return r2.RectFromPoints(b.Min, b.Max) }

func (b *Box) Test(p r2.Point) bool {
	return b.Bounds().ContainsPoint(p)
}

// Ellipsoid is an axis-aligned ellipse given by its center and semi-axes.
type Ellipsoid struct {
	Center r2.Point
	Radii  r2.Point
}

func NewEllipsoid(center, radii r2.Point) *Ellipsoid {
	return &Ellipsoid{Center: center, Radii: radii}
}

func (e *Ellipsoid) Kind() Kind             { return KindEllipsoid }
func (e *Ellipsoid) Boundary() BoundaryType { return Closed }

func (e *Ellipsoid) Bounds() r2.Rect {
	return r2.RectFromPoints(e.Center.Sub(e.Radii), e.Center.Add(e.Radii))
}

func (e *Ellipsoid) Test(p r2.Point) bool {
	if e.Radii.X <= 0 || e.Radii.Y <= 0 {
		return false
	}
	dx := (p.X - e.Center.X) / e.Radii.X
	dy := (p.Y - e.Center.Y) / e.Radii.Y
	return dx*dx+dy*dy <= 1+Epsilon
}

// Polygon is a closed simple or self-intersecting polygon tested with the
// even-odd rule.
type Polygon struct {
	Vertices []r2.Point
}

func NewPolygon(vertices []r2.Point) *Polygon {
	return &Polygon{Vertices: clonePoints(vertices)}
}

func (p *Polygon) Kind() Kind             { return KindPolygon }
func (p *Polygon) Boundary() BoundaryType { return Closed }
func (p *Polygon) Bounds() r2.Rect        { return r2.RectFromPoints(p.Vertices...) }

func (p *Polygon) Test(pt r2.Point) bool {
	return onPath(p.Vertices, pt, true) || evenOdd(p.Vertices, pt)
}

// Polyline is an open path; only points on its segments test true.
type Polyline struct {
	Vertices []r2.Point
}

func NewPolyline(vertices []r2.Point) *Polyline {
	return &Polyline{Vertices: clonePoints(vertices)}
}

func (p *Polyline) Kind() Kind             { return KindPolyline }
func (p *Polyline) Boundary() BoundaryType { return Closed }
func (p *Polyline) Bounds() r2.Rect        { return r2.RectFromPoints(p.Vertices...) }
func (p *Polyline) Test(pt r2.Point) bool  { return onPath(p.Vertices, pt, false) }

// Points is a discrete point collection.
type Points struct {
	Points []r2.Point
}

func NewPoints(points []r2.Point) *Points {
	return &Points{Points: clonePoints(points)}
}

func (p *Points) Kind() Kind             { return KindPoints }
func (p *Points) Boundary() BoundaryType { return Closed }
func (p *Points) Bounds() r2.Rect        { return r2.RectFromPoints(p.Points...) }

func (p *Points) Test(pt r2.Point) bool {
	for _, q := range p.Points {
		if q.Sub(pt).Norm() <= Epsilon {
			return true
		}
	}
	return false
}

// Line is a single segment between two endpoints.
type Line struct {
	A, B r2.Point
}

func NewLine(a, b r2.Point) *Line {
	return &Line{A: a, B: b}
}

func (l *Line) Kind() Kind             { return KindLine }
func (l *Line) Boundary() BoundaryType { return Closed }
func (l *Line) Bounds() r2.Rect        { return r2.RectFromPoints(l.A, l.B) }
func (l *Line) Test(pt r2.Point) bool  { return onSegment(l.A, l.B, pt) }

// Mask is a pixel mask interval. Pix is stored in absolute image
// coordinates; a pixel (x, y) covers [x, x+1) x [y, y+1).
type Mask struct {
	Pix *image.Alpha
}

func NewMask(pix *image.Alpha) *Mask {
	return &Mask{Pix: pix}
}

func (m *Mask) Kind() Kind             { return KindMask }
func (m *Mask) Boundary() BoundaryType { return Unspecified }

func (m *Mask) Bounds() r2.Rect {
	if m.Pix == nil {
		return r2.EmptyRect()
	}
	r := m.Pix.Rect
	return r2.RectFromPoints(
		r2.Point{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		r2.Point{X: float64(r.Max.X), Y: float64(r.Max.Y)},
	)
}

func (m *Mask) Test(pt r2.Point) bool {
	if m.Pix == nil {
		return false
	}
	x, y := int(math.Floor(pt.X)), int(math.Floor(pt.Y))
	if !(image.Point{X: x, Y: y}).In(m.Pix.Rect) {
		return false
	}
	return m.Pix.AlphaAt(x, y).A > 0
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	if m.Pix == nil {
		return 0
	}
	n := 0
	r := m.Pix.Rect
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.Pix.AlphaAt(x, y).A > 0 {
				n++
			}
		}
	}
	return n
}

// Region is a real-valued mask described by contours. A closed region is the
// even-odd union of its contours; an open region is the union of the paths.
type Region struct {
	Contours [][]r2.Point
	Closed   bool
}

func NewRegion(contours [][]r2.Point, closed bool) *Region {
	cs := make([][]r2.Point, len(contours))
	for i, c := range contours {
		cs[i] = clonePoints(c)
	}
	return &Region{Contours: cs, Closed: closed}
}

func (r *Region) Kind() Kind { return KindRegion }

func (r *Region) Boundary() BoundaryType {
	if r.Closed {
		return Closed
	}
	return Open
}

func (r *Region) Bounds() r2.Rect {
	rect := r2.EmptyRect()
	for _, c := range r.Contours {
		for _, p := range c {
			rect = rect.AddPoint(p)
		}
	}
	return rect
}

func (r *Region) Test(pt r2.Point) bool {
	inside := false
	for _, c := range r.Contours {
		if onPath(c, pt, r.Closed) {
			return true
		}
		if r.Closed && evenOdd(c, pt) {
			inside = !inside
		}
	}
	return inside
}

// Text anchors a label. It contains no points and refuses set algebra.
type Text struct {
	Anchor  r2.Point
	Content string
}

func NewText(anchor r2.Point, content string) *Text {
	return &Text{Anchor: anchor, Content: content}
}

func (t *Text) Kind() Kind             { return KindText }
func (t *Text) Boundary() BoundaryType { return Unspecified }
func (t *Text) Bounds() r2.Rect        { return r2.RectFromPoints(t.Anchor) }
func (t *Text) Test(r2.Point) bool     { return false }

func clonePoints(pts []r2.Point) []r2.Point {
	out := make([]r2.Point, len(pts))
	copy(out, pts)
	return out
}

func evenOdd(vertices []r2.Point, pt r2.Point) bool {
	inside := false
	n := len(vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := vertices[i], vertices[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

func onPath(vertices []r2.Point, pt r2.Point, closed bool) bool {
	n := len(vertices)
	if n == 1 {
		return vertices[0].Sub(pt).Norm() <= Epsilon
	}
	for i := 0; i+1 < n; i++ {
		if onSegment(vertices[i], vertices[i+1], pt) {
			return true
		}
	}
	if closed && n > 2 {
		return onSegment(vertices[n-1], vertices[0], pt)
	}
	return false
}

func onSegment(a, b, pt r2.Point) bool {
	ab := b.Sub(a)
	ap := pt.Sub(a)
	length := ab.Norm()
	if length <= Epsilon {
		return ap.Norm() <= Epsilon
	}
	if math.Abs(ab.Cross(ap))/length > 1e-6 {
		return false
	}
	t := ap.Dot(ab) / (length * length)
	return t >= -Epsilon && t <= 1+Epsilon
}

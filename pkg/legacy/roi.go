// Package legacy models the 2D screen-space ROIs of the legacy image
// viewer: typed shapes with a 1-based stack position, style attributes and
// a string property bag that carries metadata across conversions.
package legacy

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/geom"
)

// Type is the legacy shape type.
type Type int

const (
	Rectangle Type = iota
	Oval
	Polygon
	Polyline
	Freeline
	Line
	Point
	Composite
	Image
	Text
)

var typeNames = [...]string{"rectangle", "oval", "polygon", "polyline", "freeline", "line", "point", "composite", "image", "text"}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown roi type %q", s)
}

// Position is a 1-based hyperstack position. Zero means unset.
type Position struct {
	C int `json:"c,omitempty"`
	Z int `json:"z,omitempty"`
	T int `json:"t,omitempty"`
}

// Font describes the font of a text ROI. Size is in points.
type Font struct {
	Family string  `json:"family,omitempty"`
	Size   float64 `json:"size,omitempty"`
	Bold   bool    `json:"bold,omitempty"`
	Italic bool    `json:"italic,omitempty"`
}

// Roi is a mutable legacy ROI.
//
// Geometry fields are interpreted per Type: X, Y, Width and Height hold the
// bounds of rectangles and ovals and the anchor of text; Points hold the
// vertices of polygons, polylines, freelines and point sets and the two
// endpoints of a line; Contours hold the outlines of a composite; Mask holds
// the pixels of an image ROI in absolute coordinates.
type Roi struct {
	Type                Type
	X, Y, Width, Height float64
	Points              []r2.Point
	Contours            [][]r2.Point
	Mask                *image.Alpha
	Text                string
	Font                Font
	Position            Position
	StrokeColor         color.Color
	FillColor           color.Color
	StrokeWidth         float64
	Name                string

	props  map[string]string
	source geom.Predicate
}

func NewRectangle(x, y, w, h float64) *Roi {
	return &Roi{Type: Rectangle, X: x, Y: y, Width: w, Height: h}
}

func NewOval(x, y, w, h float64) *Roi {
	return &Roi{Type: Oval, X: x, Y: y, Width: w, Height: h}
}

func NewPolygon(vertices []r2.Point) *Roi {
	return &Roi{Type: Polygon, Points: clonePoints(vertices)}
}

func NewPolyline(vertices []r2.Point) *Roi {
	return &Roi{Type: Polyline, Points: clonePoints(vertices)}
}

func NewFreeline(vertices []r2.Point) *Roi {
	return &Roi{Type: Freeline, Points: clonePoints(vertices)}
}

func NewLine(x1, y1, x2, y2 float64) *Roi {
	return &Roi{Type: Line, Points: []r2.Point{{X: x1, Y: y1}, {X: x2, Y: y2}}}
}

func NewPoint(points ...r2.Point) *Roi {
	return &Roi{Type: Point, Points: clonePoints(points)}
}

func NewComposite(contours [][]r2.Point) *Roi {
	return &Roi{Type: Composite, Contours: cloneContours(contours)}
}

func NewImage(mask *image.Alpha) *Roi {
	return &Roi{Type: Image, Mask: mask}
}

func NewText(x, y float64, text string, font Font) *Roi {
	return &Roi{Type: Text, X: x, Y: y, Text: text, Font: font}
}

// Clone copies r, including its properties, into a new ROI. The host
// platform does this freely, so identity cannot be relied upon.
func (r *Roi) Clone() *Roi {
	c := *r
	c.Points = clonePoints(r.Points)
	c.Contours = cloneContours(r.Contours)
	if r.Mask != nil {
		m := *r.Mask
		m.Pix = append([]byte(nil), r.Mask.Pix...)
		c.Mask = &m
	}
	c.props = nil
	for k, v := range r.props {
		c.SetProperty(k, v)
	}
	return &c
}

// Property returns the raw value stored under key.
func (r *Roi) Property(key string) (string, bool) {
	v, ok := r.props[key]
	return v, ok
}

func (r *Roi) SetProperty(key, value string) {
	if r.props == nil {
		r.props = make(map[string]string)
	}
	r.props[key] = value
}

func (r *Roi) RemoveProperty(key string) {
	delete(r.props, key)
}

// Properties returns a copy of the property bag.
func (r *Roi) Properties() map[string]string {
	out := make(map[string]string, len(r.props))
	for k, v := range r.props {
		out[k] = v
	}
	return out
}

// Source returns the server-backed predicate this ROI was created from, if
// any. Such a ROI is a view of the predicate and writes back to it.
func (r *Roi) Source() geom.Predicate { return r.source }

func (r *Roi) SetSource(p geom.Predicate) { r.source = p }

// Bounds returns the bounding rectangle of the geometry.
func (r *Roi) Bounds() r2.Rect {
	switch r.Type {
	case Rectangle, Oval:
		return r2.RectFromPoints(r2.Point{X: r.X, Y: r.Y}, r2.Point{X: r.X + r.Width, Y: r.Y + r.Height})
	case Text:
		return r2.RectFromPoints(r2.Point{X: r.X, Y: r.Y})
	case Composite:
		rect := r2.EmptyRect()
		for _, c := range r.Contours {
			for _, p := range c {
				rect = rect.AddPoint(p)
			}
		}
		return rect
	case Image:
		if r.Mask == nil {
			return r2.EmptyRect()
		}
		b := r.Mask.Rect
		return r2.RectFromPoints(
			r2.Point{X: float64(b.Min.X), Y: float64(b.Min.Y)},
			r2.Point{X: float64(b.Max.X), Y: float64(b.Max.Y)},
		)
	}
	return r2.RectFromPoints(r.Points...)
}

// Translate moves the geometry by (dx, dy). Image ROIs move by whole pixels.
func (r *Roi) Translate(dx, dy float64) {
	r.X += dx
	r.Y += dy
	d := r2.Point{X: dx, Y: dy}
	for i := range r.Points {
		r.Points[i] = r.Points[i].Add(d)
	}
	for _, c := range r.Contours {
		for i := range c {
			c[i] = c[i].Add(d)
		}
	}
	if r.Mask != nil {
		r.Mask.Rect = r.Mask.Rect.Add(image.Point{X: int(math.Round(dx)), Y: int(math.Round(dy))})
	}
}

func (r *Roi) String() string {
	b := r.Bounds()
	name := r.Name
	if name == "" {
		name = "untitled"
	}
	return fmt.Sprintf("Roi[%s %q x=%g y=%g w=%g h=%g]", r.Type, name, b.X.Lo, b.Y.Lo, b.X.Length(), b.Y.Length())
}

func clonePoints(pts []r2.Point) []r2.Point {
	if pts == nil {
		return nil
	}
	out := make([]r2.Point, len(pts))
	copy(out, pts)
	return out
}

func cloneContours(cs [][]r2.Point) [][]r2.Point {
	if cs == nil {
		return nil
	}
	out := make([][]r2.Point, len(cs))
	for i, c := range cs {
		out[i] = clonePoints(c)
	}
	return out
}

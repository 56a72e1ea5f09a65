// Package omero holds the server-side ROI records: shapes with nullable
// Z/T/C indices and style settings, and the collections (ROIData) that own
// them. ShapeMask exposes a record as a mask predicate.
package omero

import (
	"fmt"
	"image/color"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/roierr"
)

// ShapeKind is the server shape type.
type ShapeKind string

const (
	KindRectangle ShapeKind = "Rectangle"
	KindEllipse   ShapeKind = "Ellipse"
	KindLine      ShapeKind = "Line"
	KindPoint     ShapeKind = "Point"
	KindPolygon   ShapeKind = "Polygon"
	KindPolyline  ShapeKind = "Polyline"
	KindMask      ShapeKind = "Mask"
	KindLabel     ShapeKind = "Label"
)

// FontStyle is one of the four discrete server font styles.
type FontStyle string

const (
	FontNormal     FontStyle = "Normal"
	FontBold       FontStyle = "Bold"
	FontItalic     FontStyle = "Italic"
	FontBoldItalic FontStyle = "BoldItalic"
)

// StyleOf maps bold/italic flags to a FontStyle.
func StyleOf(bold, italic bool) FontStyle {
	switch {
	case bold && italic:
		return FontBoldItalic
	case bold:
		return FontBold
	case italic:
		return FontItalic
	}
	return FontNormal
}

// Flags is the inverse of StyleOf. Unknown styles read as normal.
func (s FontStyle) Flags() (bold, italic bool) {
	switch s {
	case FontBoldItalic:
		return true, true
	case FontBold:
		return true, false
	case FontItalic:
		return false, true
	}
	return false, false
}

// Settings are the display settings of a shape.
type Settings struct {
	Stroke      color.Color
	Fill        color.Color
	StrokeWidth *Length
	FontFamily  string
	FontSize    *Length
	FontStyle   FontStyle
}

// ShapeData is a server shape record. A nil Z, T or C means the shape is
// present on every plane along that axis, which differs from index 0.
type ShapeData struct {
	ID       int64
	Geometry geom.Predicate
	Z, T, C  *int
	Settings Settings
	Text     string

	roi *ROIData
}

// NewShapeData wraps geometry in a fresh unsaved record.
func NewShapeData(g geom.Predicate) *ShapeData {
	return &ShapeData{Geometry: g}
}

// ROI returns the owning collection, or nil.
func (s *ShapeData) ROI() *ROIData { return s.roi }

// Kind derives the server shape type from the geometry.
func (s *ShapeData) Kind() (ShapeKind, error) {
	return KindFor(s.Geometry)
}

// KindFor returns the server shape type able to hold p.
func KindFor(p geom.Predicate) (ShapeKind, error) {
	if p == nil {
		return "", roierr.InvalidArgument("shape has no geometry")
	}
	switch v := geom.Resolve(p).(type) {
	case *geom.Box:
		return KindRectangle, nil
	case *geom.Ellipsoid:
		return KindEllipse, nil
	case *geom.Line:
		return KindLine, nil
	case *geom.Points:
		if len(v.Points) != 1 {
			return "", roierr.InvalidArgument("a point shape holds exactly one point, got %d", len(v.Points))
		}
		return KindPoint, nil
	case *geom.Polygon:
		return KindPolygon, nil
	case *geom.Polyline:
		return KindPolyline, nil
	case *geom.Mask:
		return KindMask, nil
	case *geom.Region:
		if len(v.Contours) == 1 {
			if v.Closed {
				return KindPolygon, nil
			}
			return KindPolyline, nil
		}
		return KindMask, nil
	case *geom.Text:
		return KindLabel, nil
	}
	return "", roierr.Unsupported("no server shape for %s predicate", p.Kind())
}

// Normalize rewrites the geometry into the form the server stores for its
// kind: single-contour regions become polygons or polylines and
// multi-contour regions are rasterized.
func (s *ShapeData) Normalize() error {
	kind, err := s.Kind()
	if err != nil {
		return err
	}
	r, ok := geom.Resolve(s.Geometry).(*geom.Region)
	if !ok {
		return nil
	}
	switch kind {
	case KindPolygon:
		s.Geometry = geom.NewPolygon(r.Contours[0])
	case KindPolyline:
		s.Geometry = geom.NewPolyline(r.Contours[0])
	case KindMask:
		m, err := geom.Rasterize(r)
		if err != nil {
			return fmt.Errorf("failed to rasterize region: %w", err)
		}
		s.Geometry = m
	}
	return nil
}

// Anchor returns the reference point of the shape: the top-left of its
// bounds, or the anchor of a label.
func (s *ShapeData) Anchor() r2.Point {
	if t, ok := geom.Resolve(s.Geometry).(*geom.Text); ok {
		return t.Anchor
	}
	return s.Geometry.Bounds().Lo()
}

func (s *ShapeData) String() string {
	kind, _ := s.Kind()
	return fmt.Sprintf("ShapeData[id=%d kind=%s z=%s t=%s c=%s]", s.ID, kind, fmtIndex(s.Z), fmtIndex(s.T), fmtIndex(s.C))
}

// Index returns a pointer to v, for the nullable Z/T/C fields.
func Index(v int) *int { return &v }

func fmtIndex(p *int) string {
	if p == nil {
		return "null"
	}
	return fmt.Sprint(*p)
}

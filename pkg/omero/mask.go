package omero

import (
	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/roierr"
)

// ShapeMask is a mask predicate backed by a server shape record. Geometry
// queries delegate to the record, so edits written back to the record are
// visible through the mask.
type ShapeMask struct {
	shape *ShapeData
}

// NewShapeMask exposes s as a predicate.
func NewShapeMask(s *ShapeData) *ShapeMask {
	return &ShapeMask{shape: s}
}

// FromPredicate creates a server-backed mask for a plain predicate. A
// predicate that already is server-backed is returned as is.
func FromPredicate(p geom.Predicate) (*ShapeMask, error) {
	if sm, ok := p.(*ShapeMask); ok {
		return sm, nil
	}
	if p == nil {
		return nil, roierr.InvalidArgument("nil predicate")
	}
	s := NewShapeData(geom.Resolve(p))
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	return NewShapeMask(s), nil
}

func (m *ShapeMask) Shape() *ShapeData { return m.shape }

// Geometry implements geom.Delegate.
func (m *ShapeMask) Geometry() geom.Predicate { return m.shape.Geometry }

func (m *ShapeMask) Kind() geom.Kind {
	if m.shape.Geometry == nil {
		return geom.KindComposite
	}
	return m.shape.Geometry.Kind()
}

func (m *ShapeMask) Test(p r2.Point) bool {
	if m.shape.Geometry == nil {
		return false
	}
	return m.shape.Geometry.Test(p)
}

func (m *ShapeMask) Bounds() r2.Rect {
	if m.shape.Geometry == nil {
		return r2.EmptyRect()
	}
	return m.shape.Geometry.Bounds()
}

func (m *ShapeMask) Boundary() geom.BoundaryType {
	if m.shape.Geometry == nil {
		return geom.Unspecified
	}
	return m.shape.Geometry.Boundary()
}

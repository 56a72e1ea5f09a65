package convert

import (
	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
)

// RoiMask is the predicate produced from a legacy ROI. It keeps the ROI so
// that style and position can follow the geometry to a shape record, and so
// that converting back yields the same ROI.
type RoiMask struct {
	pred geom.Predicate
	roi  *legacy.Roi
}

func NewRoiMask(pred geom.Predicate, roi *legacy.Roi) *RoiMask {
	return &RoiMask{pred: pred, roi: roi}
}

// Roi returns the wrapped legacy ROI.
func (m *RoiMask) Roi() *legacy.Roi { return m.roi }

// Unwrap implements mapping.Wrapper.
func (m *RoiMask) Unwrap() any { return m.roi }

// Geometry implements geom.Delegate.
func (m *RoiMask) Geometry() geom.Predicate { return m.pred }

func (m *RoiMask) Kind() geom.Kind             { return m.pred.Kind() }
func (m *RoiMask) Test(p r2.Point) bool        { return m.pred.Test(p) }
func (m *RoiMask) Bounds() r2.Rect             { return m.pred.Bounds() }
func (m *RoiMask) Boundary() geom.BoundaryType { return m.pred.Boundary() }

// RoiOf returns the legacy ROI behind p if p came from one.
func RoiOf(p geom.Predicate) (*legacy.Roi, bool) {
	m, ok := p.(*RoiMask)
	if !ok {
		return nil, false
	}
	return m.roi, true
}

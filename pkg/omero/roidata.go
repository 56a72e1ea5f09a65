package omero

import "fmt"

// ROIData is a server collection owning an ordered set of shapes. An ID of
// zero or less marks a collection the server has not stored yet.
type ROIData struct {
	ID      int64
	ImageID int64

	shapes []*ShapeData
}

func NewROIData(id int64) *ROIData {
	return &ROIData{ID: id}
}

// AddShape appends s and points its back-reference at r.
func (r *ROIData) AddShape(s *ShapeData) {
	if s.roi != nil && s.roi != r {
		s.roi.RemoveShape(s)
	}
	s.roi = r
	r.shapes = append(r.shapes, s)
}

// RemoveShape detaches s if r owns it.
func (r *ROIData) RemoveShape(s *ShapeData) {
	for i, x := range r.shapes {
		if x == s {
			r.shapes = append(r.shapes[:i], r.shapes[i+1:]...)
			s.roi = nil
			return
		}
	}
}

// ClearShapes detaches every shape. Reassembly calls it before re-adding
// children so no stale ordering survives.
func (r *ROIData) ClearShapes() {
	for _, s := range r.shapes {
		s.roi = nil
	}
	r.shapes = nil
}

// Shapes returns the shapes in order.
func (r *ROIData) Shapes() []*ShapeData {
	out := make([]*ShapeData, len(r.shapes))
	copy(out, r.shapes)
	return out
}

func (r *ROIData) NumShapes() int { return len(r.shapes) }

func (r *ROIData) String() string {
	return fmt.Sprintf("ROIData[id=%d image=%d shapes=%d]", r.ID, r.ImageID, len(r.shapes))
}

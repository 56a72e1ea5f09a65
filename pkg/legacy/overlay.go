package legacy

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/golang/geo/r2"
)

// Collection is a flat, ordered, named list of ROIs attached to an image.
// Overlay is the in-memory implementation; lazy.Overlay defers its contents
// to a server fetch.
type Collection interface {
	// Size returns the number of ROIs, or -1 if the contents are not known
	// yet.
	Size() int
	Get(index int) *Roi
	Rois() []*Roi
	Add(roi *Roi)
	AddNamed(roi *Roi, name string)
	Remove(index int)
	RemoveRoi(roi *Roi)
	RemoveNamed(name string)
	Clear()
	IndexOf(roi *Roi) int
	Contains(roi *Roi) bool
	SetStrokeColor(c color.Color)
	SetFillColor(c color.Color)
	Translate(dx, dy float64)
	Crop(bounds r2.Rect) Collection
	Duplicate() Collection
	DrawNames(on bool)
	DrawingNames() bool
	String() string
}

// Overlay is an in-memory Collection.
type Overlay struct {
	rois      []*Roi
	drawNames bool
}

// NewOverlay returns an overlay holding rois in order.
func NewOverlay(rois ...*Roi) *Overlay {
	o := &Overlay{}
	for _, r := range rois {
		o.Add(r)
	}
	return o
}

func (o *Overlay) Size() int { return len(o.rois) }

// Get returns nil when index is out of range.
func (o *Overlay) Get(index int) *Roi {
	if index < 0 || index >= len(o.rois) {
		return nil
	}
	return o.rois[index]
}

func (o *Overlay) Rois() []*Roi {
	out := make([]*Roi, len(o.rois))
	copy(out, o.rois)
	return out
}

func (o *Overlay) Add(roi *Roi) {
	if roi != nil {
		o.rois = append(o.rois, roi)
	}
}

func (o *Overlay) AddNamed(roi *Roi, name string) {
	if roi == nil {
		return
	}
	roi.Name = name
	o.Add(roi)
}

func (o *Overlay) Remove(index int) {
	if index < 0 || index >= len(o.rois) {
		return
	}
	o.rois = append(o.rois[:index], o.rois[index+1:]...)
}

func (o *Overlay) RemoveRoi(roi *Roi) {
	o.Remove(o.IndexOf(roi))
}

// RemoveNamed removes every ROI called name.
func (o *Overlay) RemoveNamed(name string) {
	kept := o.rois[:0]
	for _, r := range o.rois {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(o.rois); i++ {
		o.rois[i] = nil
	}
	o.rois = kept
}

func (o *Overlay) Clear() { o.rois = nil }

func (o *Overlay) IndexOf(roi *Roi) int {
	for i, r := range o.rois {
		if r == roi {
			return i
		}
	}
	return -1
}

func (o *Overlay) Contains(roi *Roi) bool { return o.IndexOf(roi) >= 0 }

func (o *Overlay) SetStrokeColor(c color.Color) {
	for _, r := range o.rois {
		r.StrokeColor = c
	}
}

func (o *Overlay) SetFillColor(c color.Color) {
	for _, r := range o.rois {
		r.FillColor = c
	}
}

func (o *Overlay) Translate(dx, dy float64) {
	for _, r := range o.rois {
		r.Translate(dx, dy)
	}
}

// Crop returns clones of the ROIs intersecting bounds, moved so that the
// corner of bounds becomes the origin.
func (o *Overlay) Crop(bounds r2.Rect) Collection {
	out := NewOverlay()
	out.drawNames = o.drawNames
	for _, r := range o.rois {
		if !r.Bounds().Intersects(bounds) {
			continue
		}
		c := r.Clone()
		c.Translate(-bounds.X.Lo, -bounds.Y.Lo)
		out.Add(c)
	}
	return out
}

// Duplicate returns an overlay of clones.
func (o *Overlay) Duplicate() Collection {
	out := NewOverlay()
	out.drawNames = o.drawNames
	for _, r := range o.rois {
		out.Add(r.Clone())
	}
	return out
}

func (o *Overlay) DrawNames(on bool)  { o.drawNames = on }
func (o *Overlay) DrawingNames() bool { return o.drawNames }

func (o *Overlay) String() string {
	parts := make([]string, len(o.rois))
	for i, r := range o.rois {
		parts[i] = r.String()
	}
	return fmt.Sprintf("Overlay[size=%d %s]", len(o.rois), strings.Join(parts, " "))
}

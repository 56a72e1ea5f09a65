package lazy

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/roierr"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

// RoiConverter turns tree predicates into legacy ROIs.
type RoiConverter interface {
	ToLegacy(src any) (*legacy.Roi, error)
}

// Overlay is a legacy.Collection backed by a lazy Tree. Until it is
// loaded, Size returns -1 without fetching and DrawNames is ignored; every
// other accessor loads first.
type Overlay struct {
	tree   *Tree
	conv   RoiConverter
	logger *slog.Logger

	mu    sync.Mutex
	state atomic.Int32
	rois  *legacy.Overlay
	err   error
}

// NewOverlay returns an overlay over tree. If the tree is already loaded the
// overlay materializes immediately, which needs no fetch.
func NewOverlay(tree *Tree, conv RoiConverter) *Overlay {
	o := &Overlay{tree: tree, conv: conv, logger: tree.logger, rois: legacy.NewOverlay()}
	if tree.Loaded() {
		if err := o.Load(context.Background()); err != nil {
			o.logger.Error("lazy overlay materialization failed", "image_id", tree.ImageID(), "error", err)
		}
	}
	return o
}

// Tree returns the tree the overlay materializes from.
func (o *Overlay) Tree() *Tree { return o.tree }

func (o *Overlay) State() State { return State(o.state.Load()) }

func (o *Overlay) Loaded() bool { return o.State() == Loaded }

// Err returns the error of the last failed materialization.
func (o *Overlay) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Load fetches the tree if needed and converts every predicate in it,
// depth-first, into a legacy ROI. It is all or nothing: if any node cannot
// be converted the overlay stays empty and unloaded.
func (o *Overlay) Load(ctx context.Context) error {
	if o.Loaded() {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Loaded() {
		return nil
	}

	o.state.Store(int32(Loading))
	rois, err := o.materialize(ctx)
	if err != nil {
		o.state.Store(int32(Unloaded))
		o.err = err
		return err
	}
	for _, r := range rois {
		o.rois.Add(r)
	}
	o.err = nil
	o.state.Store(int32(Loaded))
	return nil
}

func (o *Overlay) materialize(ctx context.Context) ([]*legacy.Roi, error) {
	if err := o.tree.Load(ctx); err != nil {
		return nil, err
	}
	var out []*legacy.Roi
	err := roitree.Walk(o.tree, func(n roitree.Node) error {
		p, ok := n.Data().(geom.Predicate)
		if !ok {
			return nil
		}
		roi, err := o.conv.ToLegacy(p)
		if err != nil {
			return fmt.Errorf("%w: cannot convert %s node to a legacy ROI: %w", roierr.ErrInvalidArgument, p.Kind(), err)
		}
		out = append(out, roi)
		return nil
	})
	return out, err
}

func (o *Overlay) ensure() bool {
	if err := o.Load(context.Background()); err != nil {
		o.logger.Error("lazy overlay load failed", "image_id", o.tree.ImageID(), "error", err)
		return false
	}
	return true
}

// Size returns -1 while unloaded. It never fetches.
func (o *Overlay) Size() int {
	if !o.Loaded() {
		return -1
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rois.Size()
}

// DrawNames is ignored while unloaded.
func (o *Overlay) DrawNames(on bool) {
	if !o.Loaded() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rois.DrawNames(on)
}

func (o *Overlay) DrawingNames() bool {
	if !o.Loaded() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rois.DrawingNames()
}

// with loads the overlay and runs fn on the materialized ROIs. It reports
// false if the load failed.
func (o *Overlay) with(fn func(*legacy.Overlay)) bool {
	if !o.ensure() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.rois)
	return true
}

func (o *Overlay) Get(index int) *legacy.Roi {
	var r *legacy.Roi
	o.with(func(ov *legacy.Overlay) { r = ov.Get(index) })
	return r
}

func (o *Overlay) Rois() []*legacy.Roi {
	var rs []*legacy.Roi
	o.with(func(ov *legacy.Overlay) { rs = ov.Rois() })
	return rs
}

func (o *Overlay) Add(roi *legacy.Roi) {
	o.with(func(ov *legacy.Overlay) { ov.Add(roi) })
}

func (o *Overlay) AddNamed(roi *legacy.Roi, name string) {
	o.with(func(ov *legacy.Overlay) { ov.AddNamed(roi, name) })
}

func (o *Overlay) Remove(index int) {
	o.with(func(ov *legacy.Overlay) { ov.Remove(index) })
}

func (o *Overlay) RemoveRoi(roi *legacy.Roi) {
	o.with(func(ov *legacy.Overlay) { ov.RemoveRoi(roi) })
}

func (o *Overlay) RemoveNamed(name string) {
	o.with(func(ov *legacy.Overlay) { ov.RemoveNamed(name) })
}

func (o *Overlay) Clear() {
	o.with(func(ov *legacy.Overlay) { ov.Clear() })
}

func (o *Overlay) IndexOf(roi *legacy.Roi) int {
	idx := -1
	o.with(func(ov *legacy.Overlay) { idx = ov.IndexOf(roi) })
	return idx
}

func (o *Overlay) Contains(roi *legacy.Roi) bool {
	return o.IndexOf(roi) >= 0
}

func (o *Overlay) SetStrokeColor(c color.Color) {
	o.with(func(ov *legacy.Overlay) { ov.SetStrokeColor(c) })
}

func (o *Overlay) SetFillColor(c color.Color) {
	o.with(func(ov *legacy.Overlay) { ov.SetFillColor(c) })
}

func (o *Overlay) Translate(dx, dy float64) {
	o.with(func(ov *legacy.Overlay) { ov.Translate(dx, dy) })
}

// Crop returns an in-memory overlay; nil if the load failed.
func (o *Overlay) Crop(bounds r2.Rect) legacy.Collection {
	var out legacy.Collection
	o.with(func(ov *legacy.Overlay) { out = ov.Crop(bounds) })
	return out
}

// Duplicate returns an in-memory overlay; nil if the load failed.
func (o *Overlay) Duplicate() legacy.Collection {
	var out legacy.Collection
	o.with(func(ov *legacy.Overlay) { out = ov.Duplicate() })
	return out
}

func (o *Overlay) String() string {
	if !o.Loaded() {
		return fmt.Sprintf("LazyOverlay[image=%d unloaded]", o.tree.ImageID())
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rois.String()
}

// Package lazy provides a ROI tree and a legacy overlay that defer fetching
// server ROIs until their contents are first needed. Both views share one
// fetch: the overlay materializes from the tree.
package lazy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/omero"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

// Source fetches the server collections attached to an image.
type Source interface {
	FetchROIs(ctx context.Context, imageID int64) ([]*omero.ROIData, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, imageID int64) ([]*omero.ROIData, error)

func (f SourceFunc) FetchROIs(ctx context.Context, imageID int64) ([]*omero.ROIData, error) {
	return f(ctx, imageID)
}

// State is the materialization state of a lazy view.
type State int32

const (
	Unloaded State = iota
	Loading
	Loaded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Tree is a roitree.Tree whose children are fetched from a Source on first
// access. Accessors that cannot return an error record it in Err.
type Tree struct {
	source  Source
	imageID int64
	logger  *slog.Logger

	mu       sync.Mutex
	state    atomic.Int32
	children []roitree.Node
	err      error
}

// NewTree returns an unloaded tree for the ROIs of imageID.
func NewTree(source Source, imageID int64, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{source: source, imageID: imageID, logger: logger}
}

// ImageID returns the image whose ROIs the tree holds.
func (t *Tree) ImageID() int64 { return t.imageID }

func (t *Tree) State() State { return State(t.state.Load()) }

func (t *Tree) Loaded() bool { return t.State() == Loaded }

// Err returns the error of the last failed load triggered by an accessor.
func (t *Tree) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Load fetches and builds the children once. Concurrent callers wait for
// the first one; later calls return immediately. A failed fetch leaves the
// tree unloaded so a later call can retry.
func (t *Tree) Load(ctx context.Context) error {
	if t.Loaded() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Loaded() {
		return nil
	}

	t.state.Store(int32(Loading))
	t.logger.Debug("fetching server ROIs", "image_id", t.imageID)
	rois, err := t.source.FetchROIs(ctx, t.imageID)
	if err != nil {
		t.state.Store(int32(Unloaded))
		t.err = fmt.Errorf("failed to fetch ROIs for image %d: %w", t.imageID, err)
		return t.err
	}

	fetched := make([]roitree.Node, 0, len(rois))
	for _, rd := range rois {
		node := roitree.CollectionNodeFromShapes(rd)
		node.SetParent(t)
		fetched = append(fetched, node)
	}
	// Children added before the load go after the fetched ones.
	t.children = append(fetched, t.children...)
	t.err = nil
	t.state.Store(int32(Loaded))
	t.logger.Info("server ROIs loaded", "image_id", t.imageID, "collections", len(rois))
	return nil
}

func (t *Tree) ensure() bool {
	if err := t.Load(context.Background()); err != nil {
		t.logger.Error("lazy ROI tree load failed", "image_id", t.imageID, "error", err)
		return false
	}
	return true
}

func (t *Tree) Data() any              { return nil }
func (t *Tree) Parent() roitree.Node   { return nil }
func (t *Tree) SetParent(roitree.Node) {}

// Children loads the tree and returns its children. It returns nil if the
// load failed; see Err.
func (t *Tree) Children() []roitree.Node {
	if !t.ensure() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]roitree.Node, len(t.children))
	copy(out, t.children)
	return out
}

// AddChildren loads the tree, then appends children.
func (t *Tree) AddChildren(children ...roitree.Node) {
	t.ensure()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range children {
		if c == nil {
			continue
		}
		c.SetParent(t)
		t.children = append(t.children, c)
	}
}

func (t *Tree) AddROIs(preds ...geom.Predicate) {
	nodes := make([]roitree.Node, len(preds))
	for i, p := range preds {
		nodes[i] = roitree.NewNode(p)
	}
	t.AddChildren(nodes...)
}

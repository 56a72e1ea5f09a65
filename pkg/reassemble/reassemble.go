// Package reassemble converts between flat legacy overlays and ROI trees.
// Flattening tags each legacy ROI with the server collection it came from;
// reassembly regroups ROIs by that tag into collection nodes.
package reassemble

import (
	"fmt"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/lazy"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/omero"
	"github.com/menta2k/roi-bridge/pkg/roierr"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

// Converter is the part of convert.Registry reassembly needs.
type Converter interface {
	Convert(src any, dest convert.Type) (any, error)
	ToMask(src any) (geom.Predicate, error)
	ToLegacy(src any) (*legacy.Roi, error)
}

type group struct {
	id    int64
	preds []geom.Predicate
}

// OverlayToTree converts every ROI of c to a predicate and regroups them
// by collection ID, in the order each ID is first seen. ROIs without one
// become direct children of the tree; each collection becomes one
// collection node holding its predicates in order.
//
// An unloaded lazy overlay yields the tree it was built from, without a
// fetch.
func OverlayToTree(c legacy.Collection, conv Converter) (roitree.Tree, error) {
	if lo, ok := c.(*lazy.Overlay); ok && !lo.Loaded() {
		return lo.Tree(), nil
	}

	var groups []*group
	index := map[int64]*group{}
	for i, roi := range c.Rois() {
		p, err := conv.ToMask(roi)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot convert ROI %d (%s): %w", roierr.ErrInvalidArgument, i, roi.Type, err)
		}
		id, ok := roi.CollectionID()
		if !ok {
			id = legacy.NoCollection
		}
		g, seen := index[id]
		if !seen {
			g = &group{id: id}
			groups = append(groups, g)
			index[id] = g
		}
		g.preds = append(g.preds, p)
	}

	tree := roitree.NewTree()
	for _, g := range groups {
		if g.id == legacy.NoCollection {
			tree.AddROIs(g.preds...)
			continue
		}
		cn, err := collectionNode(g, conv)
		if err != nil {
			return nil, err
		}
		tree.AddChildren(cn)
	}
	return tree, nil
}

// collectionNode rebuilds the node of one collection. The server record is
// recovered from any server-backed predicate of the group, or created empty
// under the group ID. Its shapes are cleared and re-added from the group;
// a point set adds one child per point.
func collectionNode(g *group, conv Converter) (*roitree.CollectionNode, error) {
	rd := recoverCollection(g)
	rd.ClearShapes()
	node := roitree.NewCollectionNode(rd)
	for _, p := range g.preds {
		shapes, err := shapeRecords(p, conv)
		if err != nil {
			return nil, fmt.Errorf("collection %d: %w", g.id, err)
		}
		for _, s := range shapes {
			node.AddChildren(roitree.NewNode(omero.NewShapeMask(s)))
		}
	}
	return node, nil
}

func recoverCollection(g *group) *omero.ROIData {
	for _, p := range g.preds {
		sm, ok := p.(*omero.ShapeMask)
		if !ok {
			continue
		}
		if rd := sm.Shape().ROI(); rd != nil && rd.ID == g.id {
			return rd
		}
	}
	return omero.NewROIData(g.id)
}

// shapeRecords returns the server shapes p is saved as. A server shape only
// holds one point, so a point set becomes one point shape per point.
func shapeRecords(p geom.Predicate, conv Converter) ([]*omero.ShapeData, error) {
	if sm, ok := p.(*omero.ShapeMask); ok {
		return []*omero.ShapeData{sm.Shape()}, nil
	}
	if pts, ok := geom.Resolve(p).(*geom.Points); ok && len(pts.Points) > 1 {
		if _, fromLegacy := convert.RoiOf(p); !fromLegacy {
			shapes := make([]*omero.ShapeData, len(pts.Points))
			for i, pt := range pts.Points {
				shapes[i] = omero.NewShapeData(geom.NewPoints([]r2.Point{pt}))
			}
			return shapes, nil
		}
		out, err := conv.Convert(p, convert.CollectionRecord)
		if err != nil {
			return nil, fmt.Errorf("%w: no shape records for %d points: %w", roierr.ErrInvalidArgument, len(pts.Points), err)
		}
		return out.(*omero.ROIData).Shapes(), nil
	}
	out, err := conv.Convert(p, convert.ShapeRecord)
	if err != nil {
		return nil, fmt.Errorf("%w: no shape record for %s: %w", roierr.ErrInvalidArgument, p.Kind(), err)
	}
	return []*omero.ShapeData{out.(*omero.ShapeData)}, nil
}

// TreeToOverlay flattens t depth-first into a legacy overlay. ROIs converted
// from children of a collection node carry that collection's ID. The
// conversion is all or nothing.
//
// An unloaded lazy tree yields a lazy overlay over it, without a fetch.
func TreeToOverlay(t roitree.Node, conv Converter) (legacy.Collection, error) {
	if lt, ok := t.(*lazy.Tree); ok && !lt.Loaded() {
		return lazy.NewOverlay(lt, conv), nil
	}

	ov := legacy.NewOverlay()
	err := roitree.Walk(t, func(n roitree.Node) error {
		p, ok := n.Data().(geom.Predicate)
		if !ok {
			return nil
		}
		roi, err := conv.ToLegacy(p)
		if err != nil {
			return fmt.Errorf("%w: cannot convert %s node to a legacy ROI: %w", roierr.ErrInvalidArgument, p.Kind(), err)
		}
		if cn, ok := n.Parent().(*roitree.CollectionNode); ok {
			if _, tagged := roi.CollectionID(); !tagged {
				roi.SetCollectionID(cn.ROIData().ID)
			}
		}
		ov.Add(roi)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ov, nil
}

// Collections returns the server collections a save of t would write. Each
// collection node yields its ROIData; each loose predicate is wrapped in a
// new unsaved collection of its own, one point shape per point for point
// sets.
func Collections(t roitree.Node, conv Converter) ([]*omero.ROIData, error) {
	var out []*omero.ROIData
	for _, c := range t.Children() {
		if cn, ok := c.(*roitree.CollectionNode); ok {
			out = append(out, cn.ROIData())
			continue
		}
		p, ok := c.Data().(geom.Predicate)
		if !ok {
			continue
		}
		shapes, err := shapeRecords(p, conv)
		if err != nil {
			return nil, err
		}
		rd := omero.NewROIData(0)
		for _, s := range shapes {
			rd.AddShape(s)
		}
		out = append(out, rd)
	}
	return out, nil
}

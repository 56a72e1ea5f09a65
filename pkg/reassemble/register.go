package reassemble

import (
	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

// Register adds the container converters to reg: single ROIs and
// predicates into one-element overlays and trees, and overlays and trees
// into each other.
func Register(reg *convert.Registry) {
	reg.Register(
		&convert.Converter{
			Name: "legacy/overlay", Input: convert.AnyLegacy, Output: convert.Overlay,
			Priority: convert.PriorityNormal,
			Fn: func(src any) (any, error) {
				return legacy.NewOverlay(src.(*legacy.Roi)), nil
			},
		},
		&convert.Converter{
			Name: "legacy/tree", Input: convert.AnyLegacy, Output: convert.Tree,
			Priority: convert.PriorityNormal,
			Fn: func(src any) (any, error) {
				p, err := reg.ToMask(src)
				if err != nil {
					return nil, err
				}
				t := roitree.NewTree()
				t.AddROIs(p)
				return t, nil
			},
		},
		&convert.Converter{
			Name: "mask/overlay", Input: convert.AnyMask, Output: convert.Overlay,
			Priority: convert.PriorityNormal,
			Fn: func(src any) (any, error) {
				roi, err := reg.ToLegacy(src)
				if err != nil {
					return nil, err
				}
				return legacy.NewOverlay(roi), nil
			},
		},
		&convert.Converter{
			Name: "mask/tree", Input: convert.AnyMask, Output: convert.Tree,
			Priority: convert.PriorityNormal,
			Fn: func(src any) (any, error) {
				t := roitree.NewTree()
				t.AddROIs(src.(geom.Predicate))
				return t, nil
			},
		},
		&convert.Converter{
			Name: "overlay/tree", Input: convert.Overlay, Output: convert.Tree,
			Priority: convert.PriorityNormal,
			Fn: func(src any) (any, error) {
				return OverlayToTree(src.(legacy.Collection), reg)
			},
		},
		&convert.Converter{
			Name: "tree/overlay", Input: convert.Tree, Output: convert.Overlay,
			Priority: convert.PriorityNormal,
			Fn: func(src any) (any, error) {
				return TreeToOverlay(src.(roitree.Tree), reg)
			},
		},
	)
}

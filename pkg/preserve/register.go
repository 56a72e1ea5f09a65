package preserve

import (
	"fmt"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/omero"
	"github.com/menta2k/roi-bridge/pkg/roierr"
)

// Register adds the server-aware converters to reg:
//
//   - server-backed mask -> legacy ROI viewing it
//   - server-backed legacy ROI -> its (updated) server mask
//   - legacy-derived predicate -> shape record with legacy metadata
//   - plain or server-backed predicate -> shape record
//   - legacy point set -> collection of point shapes
func Register(reg *convert.Registry, env Env) {
	reg.Register(
		&convert.Converter{
			Name: "server mask/legacy", Input: convert.OMEROMask, Output: convert.AnyLegacy,
			Priority: convert.PriorityVeryHigh,
			Fn: func(src any) (any, error) {
				return ServerToLegacy(reg, src.(*omero.ShapeMask))
			},
		},
		&convert.Converter{
			Name: "wrapped legacy/server mask", Input: convert.LegacyWrapped, Output: convert.OMEROMask,
			Priority: convert.PriorityVeryHigh,
			Fn: func(src any) (any, error) {
				return WrappedToServer(reg, src.(*legacy.Roi), env)
			},
		},
		&convert.Converter{
			Name: "legacy mask/shape record", Input: convert.AnyMask, Output: convert.ShapeRecord,
			Priority: convert.PriorityVeryHigh,
			Accept: func(src any) bool {
				_, ok := convert.RoiOf(src.(geom.Predicate))
				return ok
			},
			Fn: func(src any) (any, error) {
				return LegacyMaskToShape(reg, src.(*convert.RoiMask))
			},
		},
		&convert.Converter{
			Name: "server mask/shape record", Input: convert.OMEROMask, Output: convert.ShapeRecord,
			Priority: convert.PriorityVeryHigh,
			Fn: func(src any) (any, error) {
				return src.(*omero.ShapeMask).Shape(), nil
			},
		},
		&convert.Converter{
			Name: "mask/shape record", Input: convert.AnyMask, Output: convert.ShapeRecord,
			Priority: convert.PriorityNormal,
			Fn: func(src any) (any, error) {
				sm, err := omero.FromPredicate(src.(geom.Predicate))
				if err != nil {
					return nil, err
				}
				return sm.Shape(), nil
			},
		},
		&convert.Converter{
			Name: "legacy points/collection", Input: convert.LegacyPoint, Output: convert.CollectionRecord,
			Priority: convert.PriorityVeryHigh,
			Fn: func(src any) (any, error) {
				return PointsToROIData(reg, src.(*legacy.Roi))
			},
		},
		&convert.Converter{
			Name: "legacy point mask/collection", Input: convert.MaskPoints, Output: convert.CollectionRecord,
			Priority: convert.PriorityVeryHigh,
			Accept: func(src any) bool {
				_, ok := convert.RoiOf(src.(geom.Predicate))
				return ok
			},
			Fn: func(src any) (any, error) {
				roi, _ := convert.RoiOf(src.(geom.Predicate))
				return PointsToROIData(reg, roi)
			},
		},
	)
}

// ServerToLegacy creates a legacy ROI viewing sm: geometry through the shape
// converters, then the server metadata. The ROI is recorded in the mapping
// cache against the shape.
func ServerToLegacy(reg *convert.Registry, sm *omero.ShapeMask) (*legacy.Roi, error) {
	shape := sm.Shape()
	if shape.Geometry == nil {
		return nil, roierr.InvalidArgument("%s has no geometry", shape)
	}
	roi, err := convert.RoiFor(shape.Geometry)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %s to a legacy ROI: %w", shape, err)
	}
	ToRoi(shape, roi)
	roi.SetSource(sm)
	if cache := reg.Cache(); cache != nil {
		if err := cache.Add(roi, shape); err != nil {
			return nil, err
		}
	}
	return roi, nil
}

// WrappedToServer writes roi back onto the server shape it views and
// returns that shape's mask.
func WrappedToServer(reg *convert.Registry, roi *legacy.Roi, env Env) (*omero.ShapeMask, error) {
	sm, ok := roi.Source().(*omero.ShapeMask)
	if !ok {
		return nil, roierr.TypeMismatch(convert.LegacyWrapped, convert.TypeOf(roi))
	}
	if cache := reg.Cache(); cache != nil {
		if _, _, err := cache.Track(roi); err != nil {
			return nil, err
		}
	}
	if err := Sync(roi, sm.Shape(), env); err != nil {
		return nil, err
	}
	return sm, nil
}

// LegacyMaskToShape produces the shape record for a predicate converted from
// a legacy ROI. A record already mapped to the ROI (or to a clone of it) is
// updated in place instead of creating a new one.
func LegacyMaskToShape(reg *convert.Registry, m *convert.RoiMask) (*omero.ShapeData, error) {
	roi := m.Roi()
	var shape *omero.ShapeData
	cache := reg.Cache()
	if cache != nil {
		mapped, ok, err := cache.Track(roi)
		if err != nil {
			return nil, err
		}
		if ok {
			shape = mapped
		}
	}
	if shape == nil {
		shape = omero.NewShapeData(nil)
	}
	shape.Geometry = m.Geometry()
	if err := shape.Normalize(); err != nil {
		return nil, err
	}
	ToShape(roi, shape)
	if cache != nil {
		if err := cache.Add(roi, shape); err != nil {
			return nil, err
		}
	}
	return shape, nil
}

// PointsToROIData turns a legacy point set into an unsaved collection with
// one point shape per point, each carrying the ROI's metadata.
func PointsToROIData(reg *convert.Registry, roi *legacy.Roi) (*omero.ROIData, error) {
	if roi.Type != legacy.Point || len(roi.Points) == 0 {
		return nil, roierr.InvalidArgument("expected a non-empty point ROI, got %s", roi.Type)
	}
	rd := omero.NewROIData(0)
	for _, p := range roi.Points {
		s := omero.NewShapeData(geom.NewPoints([]r2.Point{p}))
		ToShape(roi, s)
		rd.AddShape(s)
	}
	if cache := reg.Cache(); cache != nil {
		if _, _, err := cache.Track(roi); err != nil {
			return nil, err
		}
	}
	return rd, nil
}

// ToShapeData converts a legacy ROI to its shape record, going through the
// predicate form.
func ToShapeData(reg *convert.Registry, roi *legacy.Roi) (*omero.ShapeData, error) {
	mask, err := reg.ToMask(roi)
	if err != nil {
		return nil, err
	}
	out, err := reg.Convert(mask, convert.ShapeRecord)
	if err != nil {
		return nil, err
	}
	return out.(*omero.ShapeData), nil
}

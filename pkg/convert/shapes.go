package convert

import (
	"image"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/roierr"
)

// ShapeOf returns the plain predicate describing the geometry of roi.
// Coordinates are taken as is; rectangles and ovals span [x, x+w].
func ShapeOf(roi *legacy.Roi) (geom.Predicate, error) {
	switch roi.Type {
	case legacy.Rectangle:
		return geom.NewBox(r2.Point{X: roi.X, Y: roi.Y}, r2.Point{X: roi.X + roi.Width, Y: roi.Y + roi.Height}), nil
	case legacy.Oval:
		radii := r2.Point{X: roi.Width / 2, Y: roi.Height / 2}
		return geom.NewEllipsoid(r2.Point{X: roi.X, Y: roi.Y}.Add(radii), radii), nil
	case legacy.Polygon:
		if len(roi.Points) < 3 {
			return nil, roierr.InvalidArgument("polygon needs 3 vertices, got %d", len(roi.Points))
		}
		return geom.NewPolygon(roi.Points), nil
	case legacy.Polyline:
		if len(roi.Points) < 2 {
			return nil, roierr.InvalidArgument("polyline needs 2 vertices, got %d", len(roi.Points))
		}
		return geom.NewPolyline(roi.Points), nil
	case legacy.Freeline:
		return geom.NewRegion([][]r2.Point{roi.Points}, false), nil
	case legacy.Composite:
		if len(roi.Contours) == 0 {
			return nil, roierr.InvalidArgument("composite has no contours")
		}
		return geom.NewRegion(roi.Contours, true), nil
	case legacy.Line:
		if len(roi.Points) != 2 {
			return nil, roierr.InvalidArgument("line needs 2 endpoints, got %d", len(roi.Points))
		}
		return geom.NewLine(roi.Points[0], roi.Points[1]), nil
	case legacy.Point:
		if len(roi.Points) == 0 {
			return nil, roierr.InvalidArgument("point ROI has no points")
		}
		return geom.NewPoints(roi.Points), nil
	case legacy.Image:
		if roi.Mask == nil {
			return nil, roierr.InvalidArgument("image ROI has no mask")
		}
		return geom.NewMask(cloneAlpha(roi.Mask)), nil
	case legacy.Text:
		return geom.NewText(r2.Point{X: roi.X, Y: roi.Y}, roi.Text), nil
	}
	return nil, roierr.InvalidArgument("unknown legacy type %s", roi.Type)
}

// RoiFor returns a new legacy ROI with the geometry of p.
func RoiFor(p geom.Predicate) (*legacy.Roi, error) {
	switch v := geom.Resolve(p).(type) {
	case *geom.Box:
		b := v.Bounds()
		return legacy.NewRectangle(b.X.Lo, b.Y.Lo, b.X.Length(), b.Y.Length()), nil
	case *geom.Ellipsoid:
		lo := v.Center.Sub(v.Radii)
		return legacy.NewOval(lo.X, lo.Y, 2*v.Radii.X, 2*v.Radii.Y), nil
	case *geom.Polygon:
		return legacy.NewPolygon(v.Vertices), nil
	case *geom.Polyline:
		return legacy.NewPolyline(v.Vertices), nil
	case *geom.Region:
		if v.Closed {
			return legacy.NewComposite(v.Contours), nil
		}
		if len(v.Contours) != 1 {
			return nil, roierr.InvalidArgument("open region with %d contours has no legacy form", len(v.Contours))
		}
		return legacy.NewFreeline(v.Contours[0]), nil
	case *geom.Line:
		return legacy.NewLine(v.A.X, v.A.Y, v.B.X, v.B.Y), nil
	case *geom.Points:
		return legacy.NewPoint(v.Points...), nil
	case *geom.Mask:
		if v.Pix == nil {
			return nil, roierr.InvalidArgument("mask has no pixels")
		}
		return legacy.NewImage(cloneAlpha(v.Pix)), nil
	case *geom.Text:
		return legacy.NewText(v.Anchor.X, v.Anchor.Y, v.Content, legacy.Font{}), nil
	}
	return nil, roierr.InvalidArgument("no legacy shape for %s predicate", p.Kind())
}

func cloneAlpha(a *image.Alpha) *image.Alpha {
	c := *a
	c.Pix = append([]byte(nil), a.Pix...)
	return &c
}

// shapeConverters returns the legacy <-> predicate converters. Legacy to
// predicate conversions register the source ROI with the mapping cache.
func (r *Registry) shapeConverters() []*Converter {
	type pair struct {
		name     string
		legacy   Type
		mask     Type
		toMask   int
		toLegacy int
	}
	pairs := []pair{
		{"rectangle/box", LegacyRectangle, MaskBox, PriorityVeryHigh, PriorityVeryHigh},
		{"oval/ellipsoid", LegacyOval, MaskEllipsoid, PriorityExtremelyHigh, PriorityExtremelyHigh},
		{"polygon/polygon", LegacyPolygon, MaskPolygon, PriorityExtremelyHigh, PriorityExtremelyHigh},
		{"polyline/polyline", LegacyPolyline, MaskPolyline, PriorityExtremelyHigh, PriorityExtremelyHigh},
		{"line/line", LegacyLine, MaskLine, PriorityExtremelyHigh, PriorityExtremelyHigh},
		{"point/points", LegacyPoint, MaskPoints, PriorityExtremelyHigh, PriorityExtremelyHigh},
		{"image/mask", LegacyImage, MaskInterval, PriorityExtremelyHigh, PriorityExtremelyHigh},
		{"text/text", LegacyText, MaskText, PriorityExtremelyHigh, PriorityExtremelyHigh},
	}

	var out []*Converter
	for _, p := range pairs {
		out = append(out,
			r.legacyToMask(p.name, p.legacy, p.mask, p.toMask),
			&Converter{Name: p.name, Input: p.mask, Output: p.legacy, Priority: p.toLegacy, Fn: predicateToRoi})
	}

	// Freelines and composites both become real masks; openness decides the
	// way back.
	out = append(out,
		r.legacyToMask("freeline/region", LegacyFreeline, MaskRegion, PriorityExtremelyHigh),
		r.legacyToMask("composite/region", LegacyComposite, MaskRegion, PriorityExtremelyHigh),
		&Converter{
			Name: "region/freeline", Input: MaskRegion, Output: LegacyFreeline, Priority: PriorityExtremelyHigh,
			Accept: func(src any) bool {
				reg := geom.Resolve(src.(geom.Predicate)).(*geom.Region)
				return !reg.Closed && len(reg.Contours) == 1
			},
			Fn: predicateToRoi,
		},
		&Converter{
			Name: "region/composite", Input: MaskRegion, Output: LegacyComposite, Priority: PriorityExtremelyHigh,
			Accept: func(src any) bool {
				return geom.Resolve(src.(geom.Predicate)).(*geom.Region).Closed
			},
			Fn: predicateToRoi,
		},
	)

	out = append(out,
		&Converter{
			Name: "unwrap legacy", Input: AnyMask, Output: AnyLegacy, Priority: PriorityFirst,
			Accept: func(src any) bool {
				_, ok := src.(*RoiMask)
				return ok
			},
			Fn: func(src any) (any, error) { return src.(*RoiMask).Roi(), nil },
		},
		&Converter{
			Name: "legacy/mask interval", Input: AnyLegacy, Output: MaskInterval, Priority: PriorityHigh,
			Accept: func(src any) bool { return src.(*legacy.Roi).Type != legacy.Text },
			Fn: func(src any) (any, error) {
				roi := src.(*legacy.Roi)
				shape, err := ShapeOf(roi)
				if err != nil {
					return nil, err
				}
				m, err := geom.Rasterize(shape)
				if err != nil {
					return nil, err
				}
				if err := r.track(roi); err != nil {
					return nil, err
				}
				return NewRoiMask(m, roi), nil
			},
		},
		&Converter{
			Name: "mask/image", Input: AnyMask, Output: LegacyImage, Priority: PriorityLow,
			Accept: func(src any) bool { return src.(geom.Predicate).Kind() != geom.KindText },
			Fn: func(src any) (any, error) {
				m, err := geom.Rasterize(src.(geom.Predicate))
				if err != nil {
					return nil, err
				}
				return legacy.NewImage(cloneAlpha(m.Pix)), nil
			},
		},
	)
	return out
}

func (r *Registry) legacyToMask(name string, in, out Type, priority int) *Converter {
	return &Converter{
		Name: name, Input: in, Output: out, Priority: priority,
		Fn: func(src any) (any, error) {
			roi := src.(*legacy.Roi)
			shape, err := ShapeOf(roi)
			if err != nil {
				return nil, err
			}
			if err := r.track(roi); err != nil {
				return nil, err
			}
			return NewRoiMask(shape, roi), nil
		},
	}
}

func predicateToRoi(src any) (any, error) {
	return RoiFor(src.(geom.Predicate))
}

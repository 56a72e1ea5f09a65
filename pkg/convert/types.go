package convert

import (
	"fmt"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/omero"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

// Type is the closed set of value types the converters move between.
type Type int

const (
	Any Type = iota

	AnyLegacy
	LegacyRectangle
	LegacyOval
	LegacyPolygon
	LegacyPolyline
	LegacyFreeline
	LegacyLine
	LegacyPoint
	LegacyComposite
	LegacyImage
	LegacyText
	// LegacyWrapped is a legacy ROI that is a view of a server shape.
	LegacyWrapped

	AnyMask
	MaskBox
	MaskEllipsoid
	MaskPolygon
	MaskPolyline
	MaskPoints
	MaskLine
	MaskInterval
	MaskRegion
	MaskComposite
	MaskText
	// OMEROMask is a predicate backed by a server shape record.
	OMEROMask

	ShapeRecord
	CollectionRecord
	Overlay
	Tree

	// Unknown classifies values outside the set. Nothing converts them.
	Unknown
)

var typeNames = map[Type]string{
	Any:              "any",
	AnyLegacy:        "legacy ROI",
	LegacyRectangle:  "legacy rectangle",
	LegacyOval:       "legacy oval",
	LegacyPolygon:    "legacy polygon",
	LegacyPolyline:   "legacy polyline",
	LegacyFreeline:   "legacy freeline",
	LegacyLine:       "legacy line",
	LegacyPoint:      "legacy point",
	LegacyComposite:  "legacy composite",
	LegacyImage:      "legacy image ROI",
	LegacyText:       "legacy text",
	LegacyWrapped:    "server-backed legacy ROI",
	AnyMask:          "mask predicate",
	MaskBox:          "box",
	MaskEllipsoid:    "ellipsoid",
	MaskPolygon:      "polygon",
	MaskPolyline:     "polyline",
	MaskPoints:       "point collection",
	MaskLine:         "line",
	MaskInterval:     "mask interval",
	MaskRegion:       "real mask",
	MaskComposite:    "composite mask",
	MaskText:         "text mask",
	OMEROMask:        "server-backed mask",
	ShapeRecord:      "shape record",
	CollectionRecord: "collection record",
	Overlay:          "overlay",
	Tree:             "ROI tree",
	Unknown:          "unknown",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Parent returns the immediate supertype. Any is its own parent.
func (t Type) Parent() Type {
	switch {
	case t > AnyLegacy && t <= LegacyWrapped:
		return AnyLegacy
	case t > AnyMask && t <= OMEROMask:
		return AnyMask
	}
	return Any
}

// AssignableTo reports whether a value of type t may be used where dest is
// expected.
func (t Type) AssignableTo(dest Type) bool {
	if t == Unknown {
		return false
	}
	for cur := t; ; cur = cur.Parent() {
		if cur == dest {
			return true
		}
		if cur == Any {
			return false
		}
	}
}

var legacyTypes = map[legacy.Type]Type{
	legacy.Rectangle: LegacyRectangle,
	legacy.Oval:      LegacyOval,
	legacy.Polygon:   LegacyPolygon,
	legacy.Polyline:  LegacyPolyline,
	legacy.Freeline:  LegacyFreeline,
	legacy.Line:      LegacyLine,
	legacy.Point:     LegacyPoint,
	legacy.Composite: LegacyComposite,
	legacy.Image:     LegacyImage,
	legacy.Text:      LegacyText,
}

var maskTypes = map[geom.Kind]Type{
	geom.KindBox:       MaskBox,
	geom.KindEllipsoid: MaskEllipsoid,
	geom.KindPolygon:   MaskPolygon,
	geom.KindPolyline:  MaskPolyline,
	geom.KindPoints:    MaskPoints,
	geom.KindLine:      MaskLine,
	geom.KindMask:      MaskInterval,
	geom.KindRegion:    MaskRegion,
	geom.KindComposite: MaskComposite,
	geom.KindText:      MaskText,
}

// LegacyTypeOf maps a legacy shape type to its Type, ignoring whether the
// ROI is server-backed.
func LegacyTypeOf(t legacy.Type) Type {
	if ct, ok := legacyTypes[t]; ok {
		return ct
	}
	return Unknown
}

// TypeOf classifies v.
func TypeOf(v any) Type {
	switch x := v.(type) {
	case nil:
		return Unknown
	case *legacy.Roi:
		if x == nil {
			return Unknown
		}
		if _, ok := x.Source().(*omero.ShapeMask); ok {
			return LegacyWrapped
		}
		return LegacyTypeOf(x.Type)
	case *omero.ShapeMask:
		return OMEROMask
	case geom.Predicate:
		if t, ok := maskTypes[x.Kind()]; ok {
			return t
		}
		return AnyMask
	case *omero.ShapeData:
		return ShapeRecord
	case *omero.ROIData:
		return CollectionRecord
	case legacy.Collection:
		return Overlay
	case roitree.Tree:
		return Tree
	}
	return Unknown
}

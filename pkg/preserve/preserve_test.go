package preserve

import (
	"errors"
	"image/color"
	"testing"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/mapping"
	"github.com/menta2k/roi-bridge/pkg/omero"
	"github.com/menta2k/roi-bridge/pkg/roierr"
)

func newRegistry(env Env) *convert.Registry {
	reg := convert.NewRegistry(mapping.New())
	Register(reg, env)
	return reg
}

func serverBox() *omero.ShapeMask {
	s := omero.NewShapeData(geom.NewBox(r2.Point{X: 1, Y: 2}, r2.Point{X: 5, Y: 6}))
	s.ID = 99
	s.Z = omero.Index(4)
	s.C = omero.Index(0)
	s.Settings.Stroke = color.NRGBA{R: 255, A: 255}
	s.Settings.StrokeWidth = omero.NewLength(2, omero.Pixel)
	s.Text = "cell"
	rd := omero.NewROIData(7)
	rd.AddShape(s)
	return omero.NewShapeMask(s)
}

func TestPositionToServerIsZeroBased(t *testing.T) {
	reg := newRegistry(Env{})
	roi := legacy.NewRectangle(0, 0, 2, 2)
	roi.Position = legacy.Position{Z: 3}

	shape, err := ToShapeData(reg, roi)
	if err != nil {
		t.Fatalf("ToShapeData failed: %v", err)
	}
	if shape.Z == nil || *shape.Z != 2 {
		t.Errorf("Expected Z=2, got %v", shape.Z)
	}
	if shape.T != nil || shape.C != nil {
		t.Errorf("Expected unset T and C to stay null, got %v %v", shape.T, shape.C)
	}
}

func TestUnsetPositionDoesNotOverwriteNull(t *testing.T) {
	s := omero.NewShapeData(geom.NewBox(r2.Point{}, r2.Point{X: 1, Y: 1}))
	ToShape(legacy.NewRectangle(0, 0, 1, 1), s)
	if s.Z != nil {
		t.Errorf("Expected null Z, got %d", *s.Z)
	}
}

func TestStyleAndTextToServer(t *testing.T) {
	roi := legacy.NewText(3, 4, "hello", legacy.Font{Family: "Serif", Size: 14, Bold: true, Italic: true})
	roi.StrokeWidth = 1.5
	roi.FillColor = color.NRGBA{G: 255, A: 128}
	s := omero.NewShapeData(geom.NewText(r2.Point{X: 3, Y: 4}, "hello"))
	ToShape(roi, s)

	if s.Text != "hello" || s.Settings.FontFamily != "Serif" {
		t.Errorf("Expected text and family copied, got %q %q", s.Text, s.Settings.FontFamily)
	}
	if s.Settings.FontStyle != omero.FontBoldItalic {
		t.Errorf("Expected BoldItalic, got %s", s.Settings.FontStyle)
	}
	if s.Settings.FontSize == nil || s.Settings.FontSize.Unit != omero.Point || s.Settings.FontSize.Value != 14 {
		t.Errorf("Expected 14pt font size, got %v", s.Settings.FontSize)
	}
	if s.Settings.StrokeWidth == nil || s.Settings.StrokeWidth.Value != 1.5 {
		t.Errorf("Expected stroke width 1.5, got %v", s.Settings.StrokeWidth)
	}
	if s.Settings.Fill == nil {
		t.Error("Expected fill color copied")
	}
}

func TestServerToLegacyMetadata(t *testing.T) {
	reg := newRegistry(Env{})
	sm := serverBox()
	roi, err := reg.ToLegacy(sm)
	if err != nil {
		t.Fatalf("ToLegacy failed: %v", err)
	}
	if roi.Type != legacy.Rectangle || roi.X != 1 || roi.Width != 4 {
		t.Errorf("Unexpected geometry %v", roi)
	}
	if roi.Position != (legacy.Position{C: 1, Z: 5, T: 0}) {
		t.Errorf("Expected 1-based position C=1 Z=5 T=0, got %+v", roi.Position)
	}
	z, tp, c, ok := roi.OriginalPosition()
	if !ok || z != 4 || tp != -1 || c != 0 {
		t.Errorf("Expected stashed (4,-1,0), got (%d,%d,%d) %v", z, tp, c, ok)
	}
	if roi.Name != "cell" || roi.StrokeWidth != 2 {
		t.Errorf("Expected name and stroke width, got %q %g", roi.Name, roi.StrokeWidth)
	}
	if id, ok := roi.CollectionID(); !ok || id != 7 {
		t.Errorf("Expected collection 7, got %d %v", id, ok)
	}
	if roi.Source() != sm {
		t.Error("Expected ROI to view the server mask")
	}
	if got, ok := reg.Cache().Get(roi); !ok || got != sm.Shape() {
		t.Error("Expected ROI mapped to the server shape")
	}
}

func TestUnconvertibleStrokeWidthIsDropped(t *testing.T) {
	s := omero.NewShapeData(geom.NewBox(r2.Point{}, r2.Point{X: 1, Y: 1}))
	s.Settings.StrokeWidth = omero.NewLength(3, omero.Micrometer)
	roi := legacy.NewRectangle(0, 0, 1, 1)
	ToRoi(s, roi)
	if roi.StrokeWidth != 0 {
		t.Errorf("Expected stroke width left unset, got %g", roi.StrokeWidth)
	}
}

func TestResolvePosition(t *testing.T) {
	tests := []struct {
		name      string
		live      int
		stashed   int
		haveStash bool
		ignore    bool
		want      *int
	}{
		{"live wins when not ignoring", 3, 7, true, false, omero.Index(2)},
		{"unset live is null", 0, 7, true, false, nil},
		{"stash wins when ignoring", 3, 7, true, true, omero.Index(7)},
		{"negative stash is null", 3, -1, true, true, nil},
		{"no stash falls back to live", 3, 0, false, true, omero.Index(2)},
	}
	for _, tc := range tests {
		got := ResolvePosition(tc.live, tc.stashed, tc.haveStash, tc.ignore)
		if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, deref(tc.want), deref(got))
		}
	}
}

func TestEnvConflictRule(t *testing.T) {
	tests := []struct {
		env  Env
		want bool
	}{
		{Env{}, true},
		{Env{Macro: true}, false},
		{Env{ShowAllSliceOnly: true}, false},
		{Env{Macro: true, ShowAllSliceOnly: true}, false},
	}
	for _, tc := range tests {
		if got := tc.env.IgnoreLegacyPosition(); got != tc.want {
			t.Errorf("%+v: expected %v, got %v", tc.env, tc.want, got)
		}
	}
}

func TestWrappedWriteBack(t *testing.T) {
	reg := newRegistry(Env{Macro: true})
	sm := serverBox()
	roi, err := reg.ToLegacy(sm)
	if err != nil {
		t.Fatalf("ToLegacy failed: %v", err)
	}

	roi.Translate(10, 0)
	roi.Position.Z = 2
	roi.Name = "renamed"

	back, err := reg.ToMask(roi)
	if err != nil {
		t.Fatalf("ToMask failed: %v", err)
	}
	if back != sm {
		t.Fatal("Expected the original server mask back")
	}
	shape := sm.Shape()
	if got := shape.Geometry.Bounds().X.Lo; got != 11 {
		t.Errorf("Expected moved geometry x=11, got %g", got)
	}
	if shape.Z == nil || *shape.Z != 1 {
		t.Errorf("Expected live position in macro mode (Z=1), got %v", shape.Z)
	}
	if shape.Text != "renamed" {
		t.Errorf("Expected text from name, got %q", shape.Text)
	}
}

func TestWrappedWriteBackPrefersStashInteractive(t *testing.T) {
	reg := newRegistry(Env{})
	sm := serverBox()
	roi, _ := reg.ToLegacy(sm)
	roi.Position.Z = 9

	if _, err := reg.ToMask(roi); err != nil {
		t.Fatalf("ToMask failed: %v", err)
	}
	if z := sm.Shape().Z; z == nil || *z != 4 {
		t.Errorf("Expected stashed Z=4, got %v", z)
	}
	if sm.Shape().T != nil {
		t.Error("Expected negative stashed T to stay null")
	}
}

func TestLegacyMaskReusesMappedShape(t *testing.T) {
	reg := newRegistry(Env{})
	roi := legacy.NewOval(0, 0, 4, 4)
	first, err := ToShapeData(reg, roi)
	if err != nil {
		t.Fatalf("ToShapeData failed: %v", err)
	}
	clone := roi.Clone()
	clone.Translate(1, 1)
	second, err := ToShapeData(reg, clone)
	if err != nil {
		t.Fatalf("ToShapeData on clone failed: %v", err)
	}
	if first != second {
		t.Error("Expected clone to update the original shape record")
	}
	if reg.Cache().Len() != 1 {
		t.Errorf("Expected one mapping, got %d", reg.Cache().Len())
	}
	if got := second.Geometry.Bounds().X.Lo; got != 1 {
		t.Errorf("Expected updated geometry x=1, got %g", got)
	}
}

func TestPointsToROIData(t *testing.T) {
	reg := newRegistry(Env{})
	roi := legacy.NewPoint(r2.Point{X: 1, Y: 1}, r2.Point{X: 2, Y: 3}, r2.Point{X: 4, Y: 4})
	roi.Position.T = 2
	out, err := reg.Convert(roi, convert.CollectionRecord)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	rd := out.(*omero.ROIData)
	if rd.NumShapes() != 3 {
		t.Fatalf("Expected 3 point shapes, got %d", rd.NumShapes())
	}
	for _, s := range rd.Shapes() {
		if kind, _ := s.Kind(); kind != omero.KindPoint {
			t.Errorf("Expected point shape, got %s", kind)
		}
		if s.T == nil || *s.T != 1 {
			t.Errorf("Expected T=1 on every point, got %v", s.T)
		}
	}

	if _, err := PointsToROIData(reg, legacy.NewOval(0, 0, 1, 1)); !errors.Is(err, roierr.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for non-point ROI, got %v", err)
	}
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

package store

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/lazy"
	"github.com/menta2k/roi-bridge/pkg/maskio"
	"github.com/menta2k/roi-bridge/pkg/omero"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

func openTestStore(t *testing.T, format string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "rois.db"), format, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleCollection() *omero.ROIData {
	rd := omero.NewROIData(0)

	box := omero.NewShapeData(geom.NewBox(r2.Point{X: 1, Y: 2}, r2.Point{X: 5, Y: 8}))
	box.Z = omero.Index(3)
	box.Settings.Stroke = color.NRGBA{R: 255, A: 255}
	box.Settings.StrokeWidth = omero.NewLength(2, omero.Pixel)
	box.Text = "nucleus"
	rd.AddShape(box)

	label := omero.NewShapeData(geom.NewText(r2.Point{X: 10, Y: 10}, "A1"))
	label.Settings.FontFamily = "Serif"
	label.Settings.FontSize = omero.NewLength(12, omero.Point)
	label.Settings.FontStyle = omero.FontBold
	label.Text = "A1"
	rd.AddShape(label)

	pix := image.NewAlpha(image.Rect(20, 30, 24, 33))
	pix.SetAlpha(21, 31, color.Alpha{A: 255})
	rd.AddShape(omero.NewShapeData(geom.NewMask(pix)))
	return rd
}

func TestSaveAssignsIDs(t *testing.T) {
	s := openTestStore(t, maskio.FormatPNG)
	rd := sampleCollection()
	if err := s.SaveROIs(context.Background(), 42, []*omero.ROIData{rd}); err != nil {
		t.Fatalf("SaveROIs failed: %v", err)
	}
	if rd.ID <= 0 || rd.ImageID != 42 {
		t.Errorf("Expected stored collection for image 42, got %s", rd)
	}
	for i, shape := range rd.Shapes() {
		if shape.ID <= 0 {
			t.Errorf("shape %d: expected an assigned ID", i)
		}
	}
}

func TestFetchRestoresShapes(t *testing.T) {
	for _, format := range []string{maskio.FormatPNG, maskio.FormatWebP} {
		t.Run(format, func(t *testing.T) {
			s := openTestStore(t, format)
			ctx := context.Background()
			saved := sampleCollection()
			if err := s.SaveROIs(ctx, 42, []*omero.ROIData{saved}); err != nil {
				t.Fatalf("SaveROIs failed: %v", err)
			}

			rois, err := s.FetchROIs(ctx, 42)
			if err != nil {
				t.Fatalf("FetchROIs failed: %v", err)
			}
			if len(rois) != 1 || rois[0].ID != saved.ID {
				t.Fatalf("Expected collection %d, got %v", saved.ID, rois)
			}
			shapes := rois[0].Shapes()
			if len(shapes) != 3 {
				t.Fatalf("Expected 3 shapes, got %d", len(shapes))
			}

			box := shapes[0]
			if !geom.ApproxEqual(box.Geometry, saved.Shapes()[0].Geometry, 1e-9) {
				t.Errorf("Expected box geometry restored, got %v", box.Geometry.Bounds())
			}
			if box.Z == nil || *box.Z != 3 || box.T != nil {
				t.Errorf("Expected Z=3 and null T, got %v %v", box.Z, box.T)
			}
			if box.Settings.StrokeWidth == nil || box.Settings.StrokeWidth.Unit != omero.Pixel || box.Settings.StrokeWidth.Value != 2 {
				t.Errorf("Expected 2px stroke, got %v", box.Settings.StrokeWidth)
			}
			if box.Text != "nucleus" || box.Settings.Stroke == nil {
				t.Errorf("Expected text and stroke color, got %q %v", box.Text, box.Settings.Stroke)
			}
			if box.ROI() != rois[0] {
				t.Error("Expected shape owned by fetched collection")
			}

			label := shapes[1]
			if label.Settings.FontStyle != omero.FontBold || label.Settings.FontFamily != "Serif" {
				t.Errorf("Expected bold Serif label, got %s %s", label.Settings.FontStyle, label.Settings.FontFamily)
			}

			mask, ok := shapes[2].Geometry.(*geom.Mask)
			if !ok {
				t.Fatalf("Expected mask geometry, got %T", shapes[2].Geometry)
			}
			if mask.Pix.Rect != image.Rect(20, 30, 24, 33) {
				t.Errorf("Expected mask at its original rectangle, got %v", mask.Pix.Rect)
			}
			if !mask.Test(r2.Point{X: 21.5, Y: 31.5}) || mask.Test(r2.Point{X: 20.5, Y: 30.5}) {
				t.Error("Expected mask pixels restored")
			}
		})
	}
}

func TestSaveReplacesShapeSet(t *testing.T) {
	s := openTestStore(t, maskio.FormatPNG)
	ctx := context.Background()
	rd := sampleCollection()
	if err := s.SaveROIs(ctx, 1, []*omero.ROIData{rd}); err != nil {
		t.Fatalf("SaveROIs failed: %v", err)
	}

	first := rd.Shapes()[0]
	rd.ClearShapes()
	rd.AddShape(first)
	if err := s.SaveROIs(ctx, 1, []*omero.ROIData{rd}); err != nil {
		t.Fatalf("second SaveROIs failed: %v", err)
	}

	rois, err := s.FetchROIs(ctx, 1)
	if err != nil {
		t.Fatalf("FetchROIs failed: %v", err)
	}
	if len(rois) != 1 || rois[0].NumShapes() != 1 {
		t.Fatalf("Expected one collection with one shape, got %v", rois)
	}
	if rois[0].Shapes()[0].ID != first.ID {
		t.Errorf("Expected shape ID %d kept, got %d", first.ID, rois[0].Shapes()[0].ID)
	}
}

func TestEmptyCollectionAndImages(t *testing.T) {
	s := openTestStore(t, maskio.FormatPNG)
	ctx := context.Background()
	if err := s.SaveROIs(ctx, 5, []*omero.ROIData{omero.NewROIData(0)}); err != nil {
		t.Fatalf("SaveROIs failed: %v", err)
	}
	if err := s.SaveROIs(ctx, 2, []*omero.ROIData{sampleCollection()}); err != nil {
		t.Fatalf("SaveROIs failed: %v", err)
	}

	rois, err := s.FetchROIs(ctx, 5)
	if err != nil {
		t.Fatalf("FetchROIs failed: %v", err)
	}
	if len(rois) != 1 || rois[0].NumShapes() != 0 {
		t.Errorf("Expected one empty collection, got %v", rois)
	}

	images, err := s.Images(ctx)
	if err != nil {
		t.Fatalf("Images failed: %v", err)
	}
	if len(images) != 2 || images[0] != 2 || images[1] != 5 {
		t.Errorf("Expected images [2 5], got %v", images)
	}
}

func TestStoreBacksLazyTree(t *testing.T) {
	s := openTestStore(t, maskio.FormatWebP)
	ctx := context.Background()
	if err := s.SaveROIs(ctx, 9, []*omero.ROIData{sampleCollection(), sampleCollection()}); err != nil {
		t.Fatalf("SaveROIs failed: %v", err)
	}

	tree := lazy.NewTree(s, 9, slog.New(slog.DiscardHandler))
	children := tree.Children()
	if len(children) != 2 {
		t.Fatalf("Expected 2 collection nodes, got %d", len(children))
	}
	if _, ok := children[0].(*roitree.CollectionNode); !ok {
		t.Errorf("Expected collection node, got %T", children[0])
	}
	if n := len(roitree.Predicates(tree)); n != 6 {
		t.Errorf("Expected 6 predicates, got %d", n)
	}
}

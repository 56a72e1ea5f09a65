package roibridge

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/internal/config"
	"github.com/menta2k/roi-bridge/pkg/host"
	"github.com/menta2k/roi-bridge/pkg/lazy"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/types"
)

type mockClient struct {
	regions []types.Region
}

func (m *mockClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return "ok", nil
}

func (m *mockClient) SuggestRegions(ctx context.Context, model, prompt, imgB64 string) (*types.Suggestion, error) {
	return &types.Suggestion{Regions: append([]types.Region(nil), m.regions...)}, nil
}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	cfg := config.Default()
	cfg.Store.DatabasePath = filepath.Join(t.TempDir(), "rois.db")
	logger, err := NewLogger(&bytes.Buffer{}, "debug")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	b, err := NewWithConfig(cfg, logger)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestNewWithConfigRejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Output.MaskFormat = "gif"
	if _, err := NewWithConfig(cfg, nil); err == nil {
		t.Error("Expected error for invalid configuration")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "image_id", 3)
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"image_id":3`) {
		t.Errorf("Unexpected log output %q", buf.String())
	}
	if _, err := NewLogger(&buf, "chatty"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestSaveAndReopen(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	rect := legacy.NewRectangle(10, 10, 40, 20)
	rect.Name = "first"
	oval := legacy.NewOval(60, 60, 10, 10)
	rois, err := b.Save(ctx, 5, legacy.NewOverlay(rect, oval))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(rois) != 2 || rois[0].ID <= 0 || rois[1].ID <= rois[0].ID {
		t.Fatalf("Expected 2 new collections with increasing IDs, got %v", rois)
	}

	ov, err := b.Overlay(5)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	lo, ok := ov.(*lazy.Overlay)
	if !ok {
		t.Fatalf("Expected a lazy overlay, got %T", ov)
	}
	if lo.Loaded() {
		t.Error("Expected overlay unloaded before first use")
	}

	got := ov.Rois()
	if len(got) != 2 {
		t.Fatalf("Expected 2 ROIs, got %d", len(got))
	}
	if got[0].Type != legacy.Rectangle || got[0].Name != "first" {
		t.Errorf("Expected the named rectangle first, got %v", got[0])
	}
	for i, r := range got {
		id, ok := r.CollectionID()
		if !ok || id != rois[i].ID {
			t.Errorf("ROI %d: expected collection %d, got %d (%v)", i, rois[i].ID, id, ok)
		}
	}
}

func TestSavePointSet(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	pts := legacy.NewPoint(r2.Point{X: 2, Y: 3}, r2.Point{X: 8, Y: 9}, r2.Point{X: 14, Y: 1})
	rois, err := b.Save(ctx, 6, legacy.NewOverlay(pts))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(rois) != 1 || rois[0].ID <= 0 || rois[0].NumShapes() != 3 {
		t.Fatalf("Expected one saved collection with 3 shapes, got %v", rois)
	}

	ov, err := b.Overlay(6)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	got := ov.Rois()
	if len(got) != 3 {
		t.Fatalf("Expected 3 point ROIs, got %d", len(got))
	}
	for i, r := range got {
		id, ok := r.CollectionID()
		if r.Type != legacy.Point || !ok || id != rois[0].ID {
			t.Errorf("ROI %d: expected a point in collection %d, got %s in %d (%v)", i, rois[0].ID, r.Type, id, ok)
		}
	}
}

func TestSaveUnloadedOverlayIsNoop(t *testing.T) {
	b := newTestBridge(t)
	ov, err := b.Overlay(9)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	rois, err := b.Save(context.Background(), 9, ov)
	if err != nil || rois != nil {
		t.Errorf("Expected nothing saved, got %v %v", rois, err)
	}
	if ov.(*lazy.Overlay).Loaded() {
		t.Error("Expected Save not to load the overlay")
	}
}

func TestSuggestionsJoinStoredROIs(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()
	if _, err := b.Save(ctx, 5, legacy.NewOverlay(legacy.NewRectangle(1, 1, 5, 5), legacy.NewOval(20, 20, 4, 4))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	img := host.NewImage(5, "slide")
	if err := b.Open(img); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if b.Display().Active() != img {
		t.Fatal("Expected opened image to be active")
	}

	d := b.Detector(&mockClient{regions: []types.Region{
		{Label: "cell", Confidence: 0.9, Box: types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25}},
	}})
	m := host.NewModule("suggest")
	if err := b.Run(ctx, m, d.Step(image.NewRGBA(image.Rect(0, 0, 100, 100)))); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := len(img.Overlay().Rois()); n != 3 {
		t.Fatalf("Expected 2 stored and 1 suggested ROI, got %d", n)
	}

	if _, err := b.Save(ctx, 5, img.Overlay()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	stored, err := b.Store().FetchROIs(ctx, 5)
	if err != nil {
		t.Fatalf("FetchROIs failed: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("Expected 3 stored collections, got %d", len(stored))
	}
}

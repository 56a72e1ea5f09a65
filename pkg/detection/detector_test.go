package detection

import (
	"context"
	"image"
	"log/slog"
	"testing"

	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/host"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/mapping"
	"github.com/menta2k/roi-bridge/pkg/module"
	"github.com/menta2k/roi-bridge/pkg/preserve"
	"github.com/menta2k/roi-bridge/pkg/reassemble"
	"github.com/menta2k/roi-bridge/pkg/roiservice"
	"github.com/menta2k/roi-bridge/pkg/types"
)

type mockClient struct {
	suggestion *types.Suggestion
	prompts    []string
}

func (m *mockClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return "a test image", nil
}

func (m *mockClient) SuggestRegions(ctx context.Context, model, prompt, imgB64 string) (*types.Suggestion, error) {
	m.prompts = append(m.prompts, prompt)
	cp := *m.suggestion
	cp.Regions = append([]types.Region(nil), m.suggestion.Regions...)
	return &cp, nil
}

func createTestImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestSuggestFiltersRegions(t *testing.T) {
	mc := &mockClient{suggestion: &types.Suggestion{Regions: []types.Region{
		{Label: " Cell ", Confidence: 0.5, Box: types.Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}},
		{Label: "noise", Confidence: 0.05, Box: types.Box{X: 0.5, Y: 0.5, W: 0.1, H: 0.1}},
		{Label: "nucleus", Confidence: 0.9, Box: types.Box{X: 0.6, Y: 0.6, W: 0.8, H: 0.2}},
		{Label: "empty", Confidence: 0.9, Box: types.Box{X: 0.2, Y: 0.2}},
		{Label: "cell again", Confidence: 0.4, Box: types.Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}},
	}}}
	d := NewDetector(mc, types.SuggestOptions{Model: "test", MinConfidence: 0.1}, discard())

	s, err := d.Suggest(context.Background(), createTestImage(64, 48))
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(s.Regions) != 2 {
		t.Fatalf("Expected 2 regions, got %d: %+v", len(s.Regions), s.Regions)
	}
	if s.Regions[0].Label != "nucleus" || s.Regions[1].Label != "cell" {
		t.Errorf("Expected nucleus then cell, got %q %q", s.Regions[0].Label, s.Regions[1].Label)
	}
	if s.Regions[0].Box.W != 0.8 {
		t.Errorf("Expected W clamped to [0,1] only, got %g", s.Regions[0].Box.W)
	}
	if len(mc.prompts) != 1 || mc.prompts[0] != DefaultPrompt {
		t.Error("Expected the default prompt")
	}
}

func TestMaxRegions(t *testing.T) {
	mc := &mockClient{suggestion: &types.Suggestion{Regions: []types.Region{
		{Label: "a", Confidence: 0.3, Box: types.Box{X: 0, Y: 0, W: 0.1, H: 0.1}},
		{Label: "b", Confidence: 0.6, Box: types.Box{X: 0.2, Y: 0, W: 0.1, H: 0.1}},
		{Label: "c", Confidence: 0.9, Box: types.Box{X: 0.4, Y: 0, W: 0.1, H: 0.1}},
	}}}
	d := NewDetector(mc, types.SuggestOptions{MaxRegions: 2}, discard())
	s, err := d.Suggest(context.Background(), createTestImage(10, 10))
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(s.Regions) != 2 || s.Regions[0].Label != "c" || s.Regions[1].Label != "b" {
		t.Errorf("Expected the two most confident regions, got %+v", s.Regions)
	}
}

func TestToOverlay(t *testing.T) {
	ov := ToOverlay([]types.Region{{Label: "cell", Box: types.Box{X: 0.25, Y: 0.5, W: 0.5, H: 0.25}}}, 100, 40)
	if ov.Size() != 1 {
		t.Fatalf("Expected 1 ROI, got %d", ov.Size())
	}
	roi := ov.Get(0)
	if roi.Type != legacy.Rectangle || roi.X != 25 || roi.Y != 20 || roi.Width != 50 || roi.Height != 10 {
		t.Errorf("Unexpected ROI %v", roi)
	}
	if roi.Name != "cell" {
		t.Errorf("Expected name from label, got %q", roi.Name)
	}
}

func TestStepAttachesToActiveImage(t *testing.T) {
	reg := convert.NewRegistry(mapping.New())
	preserve.Register(reg, preserve.Env{})
	reassemble.Register(reg)
	display := host.NewDisplay()
	active := host.NewImage(1, "slide")
	display.SetActive(active)
	pipeline := module.NewPipeline(display, host.NewCache(), reg, roiservice.New(reg, discard()), discard())

	mc := &mockClient{suggestion: &types.Suggestion{Regions: []types.Region{
		{Label: "cell", Confidence: 0.8, Box: types.Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}},
	}}}
	d := NewDetector(mc, types.SuggestOptions{}, discard())

	m := host.NewModule("suggest")
	if err := pipeline.Run(context.Background(), m, d.Step(createTestImage(50, 50))); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !m.IsResolved(OutputName) {
		t.Error("Expected the suggestion output resolved")
	}
	if active.Overlay() == nil || active.Overlay().Size() != 1 {
		t.Fatalf("Expected one ROI on the active image, got %v", active.Overlay())
	}
}

func TestTestVision(t *testing.T) {
	mc := &mockClient{suggestion: &types.Suggestion{}}
	d := NewDetector(mc, types.SuggestOptions{}, discard())
	out, err := d.TestVision(context.Background(), createTestImage(8, 8))
	if err != nil || out == "" {
		t.Errorf("Expected a description, got %q %v", out, err)
	}
	if mc.prompts[0] != SimpleTestPrompt {
		t.Error("Expected the simple test prompt")
	}
}

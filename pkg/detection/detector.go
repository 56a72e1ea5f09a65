// Package detection asks a vision model for regions of interest and turns
// them into legacy rectangle ROIs, as the output of a module run.
package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"

	"github.com/menta2k/roi-bridge/pkg/client"
	"github.com/menta2k/roi-bridge/pkg/host"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/maskio"
	"github.com/menta2k/roi-bridge/pkg/module"
	"github.com/menta2k/roi-bridge/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for regions of interest
const DefaultPrompt = `You are a region-of-interest annotator for scientific and general images.

Return JSON only:
{
  "regions": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- Each box should tightly enclose one distinct object or structure.
- Order regions by confidence, highest first. At most 10 regions.
- Labels: lowercase, concise.
- If nothing stands out, return {"regions": [], "description": "no distinct regions"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// OutputName is the module output holding the suggested ROIs.
const OutputName = "suggestions"

// Detector turns model suggestions into ROIs
type Detector struct {
	client client.VisionClient
	proc   *maskio.Processor
	opts   types.SuggestOptions
	logger *slog.Logger
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient, opts types.SuggestOptions, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 90
	}
	return &Detector{client: client, proc: maskio.NewProcessor(), opts: opts, logger: logger}
}

// Suggest asks the model for regions of img and returns the cleaned-up
// answer.
func (d *Detector) Suggest(ctx context.Context, img image.Image) (*types.Suggestion, error) {
	imgB64, err := d.proc.PrepareImageForModel(img, "jpg", d.opts.MaxDim, d.opts.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}
	s, err := d.client.SuggestRegions(ctx, d.opts.Model, DefaultPrompt, imgB64)
	if err != nil {
		return nil, err
	}
	s.Regions = d.filter(s.Regions)
	d.logger.Debug("regions suggested", "model", d.opts.Model, "regions", len(s.Regions))
	return s, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := d.proc.PrepareImageForModel(img, "jpg", d.opts.MaxDim, d.opts.JPEGQuality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.opts.Model, SimpleTestPrompt, imgB64)
}

// filter clamps boxes and drops empty, duplicate and low-confidence
// regions, keeping the most confident first.
func (d *Detector) filter(regions []types.Region) []types.Region {
	out := make([]types.Region, 0, len(regions))
	seen := map[types.Box]struct{}{}
	for _, r := range regions {
		r.Box = r.Box.Clamp()
		r.Label = strings.ToLower(strings.TrimSpace(r.Label))
		if r.Box.Empty() || r.Confidence < d.opts.MinConfidence {
			continue
		}
		if _, dup := seen[r.Box]; dup {
			continue
		}
		seen[r.Box] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if d.opts.MaxRegions > 0 && len(out) > d.opts.MaxRegions {
		out = out[:d.opts.MaxRegions]
	}
	return out
}

// ToOverlay converts regions to rectangle ROIs in the pixel space of a
// w x h image, named after their labels.
func ToOverlay(regions []types.Region, w, h int) *legacy.Overlay {
	ov := legacy.NewOverlay()
	for _, r := range regions {
		rect := r.Box.Rect(w, h)
		roi := legacy.NewRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
		roi.Name = r.Label
		ov.Add(roi)
	}
	return ov
}

// Step returns a module step that suggests ROIs for img and sets them as
// the OutputName output. The pipeline then attaches them like any other
// ROI output.
func (d *Detector) Step(img image.Image) module.Step {
	return func(ctx context.Context, m *host.Module) error {
		s, err := d.Suggest(ctx, img)
		if err != nil {
			return err
		}
		b := img.Bounds()
		m.AddOutput(OutputName, ToOverlay(s.Regions, b.Dx(), b.Dy()))
		return nil
	}
}

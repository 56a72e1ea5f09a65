package module

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/host"
	"github.com/menta2k/roi-bridge/pkg/lazy"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/mapping"
	"github.com/menta2k/roi-bridge/pkg/omero"
	"github.com/menta2k/roi-bridge/pkg/preserve"
	"github.com/menta2k/roi-bridge/pkg/reassemble"
	"github.com/menta2k/roi-bridge/pkg/roierr"
	"github.com/menta2k/roi-bridge/pkg/roiservice"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

type fixture struct {
	display *host.Display
	cache   *host.Cache
	reg     *convert.Registry
	rois    *roiservice.Service
	logger  *slog.Logger
}

func newFixture() *fixture {
	reg := convert.NewRegistry(mapping.New())
	preserve.Register(reg, preserve.Env{})
	reassemble.Register(reg)
	logger := slog.New(slog.DiscardHandler)
	return &fixture{
		display: host.NewDisplay(),
		cache:   host.NewCache(),
		reg:     reg,
		rois:    roiservice.New(reg, logger),
		logger:  logger,
	}
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(f.display, f.cache, f.reg, f.rois, f.logger)
}

func twoOutputs() *host.Module {
	m := host.NewModule("segment")
	m.AddOutput("nuclei", legacy.NewOverlay(legacy.NewOval(0, 0, 4, 4)))
	tree := roitree.NewTree()
	tree.AddROIs(geom.NewBox(r2.Point{X: 1, Y: 1}, r2.Point{X: 3, Y: 3}))
	m.AddOutput("cells", tree)
	m.AddOutput("count", 2)
	return m
}

func TestCacheDivertsROIOutputs(t *testing.T) {
	f := newFixture()
	m := twoOutputs()
	if err := NewCachePostprocessor(f.cache, f.logger).Process(m); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	d, ok := f.cache.Get(CacheKey).(*Diverted)
	if !ok || len(d.Items) != 2 {
		t.Fatalf("Expected 2 diverted outputs, got %v", f.cache.Get(CacheKey))
	}
	if !m.IsResolved("nuclei") || !m.IsResolved("cells") {
		t.Error("Expected ROI outputs resolved")
	}
	if m.IsResolved("count") {
		t.Error("Expected non-ROI output left alone")
	}
}

func TestCacheRejectsOccupiedSlot(t *testing.T) {
	f := newFixture()
	f.cache.Put(CacheKey, &Diverted{})
	err := NewCachePostprocessor(f.cache, f.logger).Process(twoOutputs())
	if !errors.Is(err, roierr.ErrIllegalState) {
		t.Errorf("Expected ErrIllegalState, got %v", err)
	}
}

func TestDefaultReattachWithoutActiveImageFails(t *testing.T) {
	f := newFixture()
	m := twoOutputs()
	cachePP := NewCachePostprocessor(f.cache, f.logger)
	attachPP := NewAttachPostprocessor(f.cache, f.rois, f.logger)
	activePP := NewActivePostprocessor(f.cache, f.display, f.rois)

	if err := cachePP.Process(m); err != nil {
		t.Fatalf("cache Process failed: %v", err)
	}
	if err := attachPP.Process(m); err != nil {
		t.Fatalf("attach Process failed: %v", err)
	}
	if d, ok := f.cache.Get(CacheKey).(*Diverted); !ok || len(d.Items) != 2 {
		t.Fatal("Expected undirected outputs to stay cached")
	}
	if err := activePP.Process(m); !errors.Is(err, roierr.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestReattachReportsOverlayLoadFailure(t *testing.T) {
	f := newFixture()
	src := lazy.SourceFunc(func(ctx context.Context, imageID int64) ([]*omero.ROIData, error) {
		return nil, errors.New("server down")
	})
	img := host.NewImage(1, "cells")
	img.SetOverlay(lazy.NewOverlay(lazy.NewTree(src, 1, f.logger), f.reg))
	f.display.SetActive(img)

	err := f.pipeline().Run(context.Background(), twoOutputs(), func(context.Context, *host.Module) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "server down") {
		t.Errorf("Expected the fetch error from Run, got %v", err)
	}
}

func TestDefaultReattachToActiveImage(t *testing.T) {
	f := newFixture()
	img := host.NewImage(1, "cells")
	img.SetHideOverlay(true)
	f.display.SetActive(img)

	err := f.pipeline().Run(context.Background(), twoOutputs(), func(context.Context, *host.Module) error { return nil })
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if img.Overlay() == nil || img.Overlay().Size() != 2 {
		t.Fatalf("Expected both outputs attached, got %v", img.Overlay())
	}
	if img.HideOverlay() {
		t.Error("Expected overlay shown")
	}
	if f.cache.Get(CacheKey) != nil {
		t.Error("Expected cache slot cleared")
	}
}

func TestAttachToNamedParameters(t *testing.T) {
	f := newFixture()
	m := host.NewModule("segment")
	target := host.NewImage(2, "target")
	ds := host.NewDataset("stack")
	m.AddInput("image", target)
	m.AddOutput("stack", ds)
	out := m.AddOutput("nuclei", legacy.NewOverlay(legacy.NewRectangle(0, 0, 2, 2)))
	out.SetAttribute(AttachAttribute, "image, stack,missing")

	if err := NewCachePostprocessor(f.cache, f.logger).Process(m); err != nil {
		t.Fatalf("cache Process failed: %v", err)
	}
	if err := NewAttachPostprocessor(f.cache, f.rois, f.logger).Process(m); err != nil {
		t.Fatalf("attach Process failed: %v", err)
	}
	if target.Overlay() == nil || target.Overlay().Size() != 1 {
		t.Error("Expected ROI attached to the image input")
	}
	if _, ok := ds.Property(host.PropROIs).(roitree.Tree); !ok {
		t.Error("Expected ROI tree attached to the dataset output")
	}
	if f.cache.Get(CacheKey) != nil {
		t.Error("Expected cache cleared once every output is attached")
	}
	if err := NewActivePostprocessor(f.cache, f.display, f.rois).Process(m); err != nil {
		t.Errorf("Expected nothing left for the active image, got %v", err)
	}
}

func TestPreprocessorBuildsTree(t *testing.T) {
	f := newFixture()
	pre := NewPreprocessor(f.display, f.reg)

	if tree, err := pre.Tree(); tree != nil || err != nil {
		t.Errorf("Expected nil without an active image, got %v %v", tree, err)
	}

	img := host.NewImage(1, "blank")
	f.display.SetActive(img)
	if _, err := pre.Tree(); !errors.Is(err, roierr.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for missing overlay, got %v", err)
	}

	img.SetOverlay(legacy.NewOverlay(legacy.NewRectangle(0, 0, 1, 1), legacy.NewOval(2, 2, 2, 2)))
	m := host.NewModule("measure")
	in := m.AddInput("rois", nil)
	in.SetAttribute("type", TreeInput)
	if err := pre.Process(m); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	tree, ok := m.Input("rois").(roitree.Tree)
	if !ok {
		t.Fatalf("Expected tree input, got %T", m.Input("rois"))
	}
	if n := len(tree.Children()); n != 2 {
		t.Errorf("Expected 2 leaves, got %d", n)
	}
}

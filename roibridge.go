// Package roibridge connects legacy 2D ROI overlays to server-backed ROI
// collections.
//
// Server collections are kept per image in a SQLite store. Opening an image
// gives a lazy overlay that fetches its collections on first use; saving an
// overlay regroups its ROIs by the collection they came from and writes the
// collections back.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		roibridge "github.com/menta2k/roi-bridge"
//		"github.com/menta2k/roi-bridge/pkg/legacy"
//	)
//
//	func main() {
//		b, err := roibridge.New(nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer b.Close()
//
//		ov := legacy.NewOverlay(legacy.NewRectangle(10, 10, 40, 20))
//		if _, err := b.Save(context.Background(), 1, ov); err != nil {
//			log.Fatal(err)
//		}
//
//		reopened, err := b.Overlay(1)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("image 1 has %d ROIs", len(reopened.Rois()))
//	}
//
// The package wires these components:
//
//  1. Converters (pkg/convert, pkg/preserve, pkg/reassemble): legacy ROIs,
//     mask predicates, shape records, overlays and trees
//  2. Lazy views (pkg/lazy): trees and overlays that defer the fetch
//  3. Module pipeline (pkg/module): pre- and postprocessors that feed ROIs
//     into module runs and attach their ROI outputs
//  4. Suggestions (pkg/detection): rectangle ROIs proposed by a vision model
package roibridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/menta2k/roi-bridge/internal/config"
	"github.com/menta2k/roi-bridge/pkg/client"
	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/detection"
	"github.com/menta2k/roi-bridge/pkg/host"
	"github.com/menta2k/roi-bridge/pkg/lazy"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/mapping"
	"github.com/menta2k/roi-bridge/pkg/module"
	"github.com/menta2k/roi-bridge/pkg/omero"
	"github.com/menta2k/roi-bridge/pkg/preserve"
	"github.com/menta2k/roi-bridge/pkg/reassemble"
	"github.com/menta2k/roi-bridge/pkg/roiservice"
	"github.com/menta2k/roi-bridge/pkg/store"
	"github.com/menta2k/roi-bridge/pkg/types"
)

// Version of the roi-bridge library
const Version = "0.1.0"

// Bridge provides a high-level interface over the converters, the store
// and the module pipeline.
type Bridge struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *convert.Registry
	store    *store.Store
	rois     *roiservice.Service
	display  *host.Display
	cache    *host.Cache
	pipeline *module.Pipeline
}

// New creates a Bridge with the default configuration
func New(logger *slog.Logger) (*Bridge, error) {
	return NewWithConfig(config.Default(), logger)
}

// NewWithConfig creates a Bridge with custom configuration. It opens the
// store at cfg.Store.DatabasePath.
func NewWithConfig(cfg *config.Config, logger *slog.Logger) (*Bridge, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.Store.DatabasePath, cfg.Output.MaskFormat, logger)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(preserve.Env{
		Macro:            cfg.Environment.MacroMode,
		ShowAllSliceOnly: cfg.Environment.ShowAllSliceOnly,
	})
	display := host.NewDisplay()
	cache := host.NewCache()
	rois := roiservice.New(reg, logger)

	return &Bridge{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		store:    st,
		rois:     rois,
		display:  display,
		cache:    cache,
		pipeline: module.NewPipeline(display, cache, reg, rois, logger),
	}, nil
}

// NewRegistry returns a registry with every converter registered, backed by
// a fresh mapping cache.
func NewRegistry(env preserve.Env) *convert.Registry {
	reg := convert.NewRegistry(mapping.New())
	preserve.Register(reg, env)
	reassemble.Register(reg)
	return reg
}

// NewLogger returns a JSON logger writing to w at the named level.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// Close closes the store
func (b *Bridge) Close() error {
	return b.store.Close()
}

func (b *Bridge) Config() *config.Config      { return b.cfg }
func (b *Bridge) Registry() *convert.Registry { return b.registry }
func (b *Bridge) Store() *store.Store         { return b.store }
func (b *Bridge) ROIs() *roiservice.Service   { return b.rois }
func (b *Bridge) Display() *host.Display      { return b.display }
func (b *Bridge) Pipeline() *module.Pipeline  { return b.pipeline }
func (b *Bridge) Logger() *slog.Logger        { return b.logger }

// Tree returns an unloaded tree over the stored collections of imageID.
func (b *Bridge) Tree(imageID int64) *lazy.Tree {
	return lazy.NewTree(b.store, imageID, b.logger)
}

// Overlay returns a lazy legacy overlay over the stored collections of
// imageID. Nothing is fetched until its ROIs are used.
func (b *Bridge) Overlay(imageID int64) (legacy.Collection, error) {
	return reassemble.TreeToOverlay(b.Tree(imageID), b.registry)
}

// Open attaches the stored ROIs of img as its overlay and makes it the
// active image.
func (b *Bridge) Open(img *host.Image) error {
	ov, err := b.Overlay(img.ID)
	if err != nil {
		return err
	}
	img.SetOverlay(ov)
	b.display.SetActive(img)
	return nil
}

// Save regroups the ROIs of c into server collections and stores them for
// imageID. ROIs without a collection each get a new one. The returned
// collections carry the IDs the store assigned.
//
// A lazy overlay that was never loaded has nothing new to save.
func (b *Bridge) Save(ctx context.Context, imageID int64, c legacy.Collection) ([]*omero.ROIData, error) {
	if lo, ok := c.(*lazy.Overlay); ok && !lo.Loaded() {
		b.logger.Debug("overlay not loaded, nothing to save", "image_id", imageID)
		return nil, nil
	}
	tree, err := reassemble.OverlayToTree(c, b.registry)
	if err != nil {
		return nil, err
	}
	rois, err := reassemble.Collections(tree, b.registry)
	if err != nil {
		return nil, err
	}
	if err := b.store.SaveROIs(ctx, imageID, rois); err != nil {
		return nil, err
	}
	return rois, nil
}

// Run runs step as a module through the ROI pre- and postprocessors.
func (b *Bridge) Run(ctx context.Context, m *host.Module, step module.Step) error {
	return b.pipeline.Run(ctx, m, step)
}

// Detector returns a region suggester using vc and the vision settings of
// the configuration.
func (b *Bridge) Detector(vc client.VisionClient) *detection.Detector {
	v := b.cfg.Vision
	return detection.NewDetector(vc, types.SuggestOptions{
		Model:         v.Model,
		MaxDim:        v.MaxDim,
		JPEGQuality:   v.JPEGQuality,
		MinConfidence: v.MinConfidence,
		MaxRegions:    v.MaxRegions,
	}, b.logger)
}

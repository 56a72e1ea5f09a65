// Package roiservice attaches ROIs to host images and answers whether a
// value carries ROIs.
package roiservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/host"
	"github.com/menta2k/roi-bridge/pkg/lazy"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/roierr"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

// Converter converts ROI values between representations.
type Converter interface {
	Convert(src any, dest convert.Type) (any, error)
}

// Service adds ROIs to images.
type Service struct {
	conv   Converter
	logger *slog.Logger
}

func New(conv Converter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{conv: conv, logger: logger}
}

// Add attaches rois to img. Datasets receive a tree whose children are
// merged into the dataset's ROI tree; displayed images receive an overlay
// whose ROIs are appended to the existing one.
func (s *Service) Add(rois any, img any) error {
	switch target := img.(type) {
	case *host.Dataset:
		out, err := s.conv.Convert(rois, convert.Tree)
		if err != nil {
			return fmt.Errorf("failed to convert %T to a ROI tree: %w", rois, err)
		}
		addTree(target, out.(roitree.Tree))
		s.logger.Debug("ROIs added to dataset", "dataset", target.Name)
		return nil
	case *host.Image:
		c, ok := rois.(legacy.Collection)
		if !ok {
			out, err := s.conv.Convert(rois, convert.Overlay)
			if err != nil {
				return fmt.Errorf("failed to convert %T to an overlay: %w", rois, err)
			}
			c = out.(legacy.Collection)
		}
		if err := addOverlay(target, c); err != nil {
			return err
		}
		s.logger.Debug("ROIs added to image", "image_id", target.ID)
		return nil
	}
	return roierr.InvalidArgument("cannot add %T to %T", rois, img)
}

func addTree(ds *host.Dataset, t roitree.Tree) {
	ds.Update(func(props map[string]any) {
		current, ok := props[host.PropROIs].(roitree.Tree)
		if !ok || current == nil {
			props[host.PropROIs] = t
			return
		}
		current.AddChildren(t.Children()...)
	})
}

// addOverlay appends to the image overlay, or makes c the overlay if the
// image has none. Lazy overlays on either side are loaded first; a failed
// load leaves the image untouched.
func addOverlay(img *host.Image, c legacy.Collection) error {
	current := img.Overlay()
	if current == nil {
		img.SetOverlay(c)
		return nil
	}
	if err := load(current); err != nil {
		return err
	}
	if err := load(c); err != nil {
		return err
	}
	for _, r := range c.Rois() {
		current.Add(r)
	}
	return nil
}

func load(c legacy.Collection) error {
	lo, ok := c.(*lazy.Overlay)
	if !ok {
		return nil
	}
	if err := lo.Load(context.Background()); err != nil {
		return fmt.Errorf("failed to load ROIs of image %d: %w", lo.Tree().ImageID(), err)
	}
	return nil
}

// HasROIs reports whether v carries ROIs. It never loads a lazy tree or
// overlay: trees and overlays always answer true.
func HasROIs(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case roitree.Tree, legacy.Collection, geom.Predicate:
		return true
	case *legacy.Roi:
		return x != nil
	case roitree.Node:
		return nodeHasROIs(x)
	}
	return false
}

func nodeHasROIs(n roitree.Node) bool {
	if _, ok := n.(roitree.Tree); ok {
		return true
	}
	if _, ok := n.Data().(geom.Predicate); ok {
		return true
	}
	for _, c := range n.Children() {
		if nodeHasROIs(c) {
			return true
		}
	}
	return false
}

// Package module hooks the ROI layer into module runs. Before a run, tree
// inputs are filled from the active image overlay. After a run, ROI outputs
// are diverted into the shared cache so the generic display step leaves
// them alone, then attached to named parameters or to the active image.
package module

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/host"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/roierr"
	"github.com/menta2k/roi-bridge/pkg/roitree"
)

const (
	// CacheKey is where diverted ROI outputs wait for attachment.
	CacheKey = "outputROIs"
	// AttachAttribute names the parameters an output attaches to, comma
	// separated.
	AttachAttribute = "attachToImages"
)

var attachSeparator = regexp.MustCompile(`,[ ]*`)

// Adder attaches ROIs to an image.
type Adder interface {
	Add(rois any, img any) error
}

// Diverted holds the ROI outputs of one module run.
type Diverted struct {
	Items []*host.Item
}

// Preprocessor fills unset tree inputs from the active image overlay.
type Preprocessor struct {
	display *host.Display
	conv    interface {
		ToMask(src any) (geom.Predicate, error)
	}
}

func NewPreprocessor(display *host.Display, reg *convert.Registry) *Preprocessor {
	return &Preprocessor{display: display, conv: reg}
}

// Tree builds a flat tree from the active image overlay. It returns nil if
// no image is active.
func (p *Preprocessor) Tree() (roitree.Tree, error) {
	img := p.display.Active()
	if img == nil {
		return nil, nil
	}
	ov := img.Overlay()
	if ov == nil {
		return nil, roierr.InvalidArgument("active image %q has no overlay", img.Title)
	}
	rois := ov.Rois()
	preds := make([]geom.Predicate, 0, len(rois))
	for _, r := range rois {
		pred, err := p.conv.ToMask(r)
		if err != nil {
			return nil, fmt.Errorf("failed to convert overlay ROI: %w", err)
		}
		preds = append(preds, pred)
	}
	t := roitree.NewTree()
	t.AddROIs(preds...)
	return t, nil
}

// Process sets every tree input of m that has no value.
func (p *Preprocessor) Process(m *host.Module) error {
	for _, in := range m.Inputs() {
		if !isTreeInput(in) {
			continue
		}
		t, err := p.Tree()
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		m.SetInput(in.Name, t)
		m.Resolve(in.Name)
	}
	return nil
}

// TreeInput marks an input as expecting a ROI tree.
const TreeInput = "roiTree"

func isTreeInput(it *host.Item) bool {
	kind, _ := it.Attribute("type")
	return kind == TreeInput && it.Value == nil
}

// CachePostprocessor diverts unresolved overlay and tree outputs into the
// cache and marks them resolved.
type CachePostprocessor struct {
	cache  *host.Cache
	logger *slog.Logger
}

func NewCachePostprocessor(cache *host.Cache, logger *slog.Logger) *CachePostprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachePostprocessor{cache: cache, logger: logger}
}

func (p *CachePostprocessor) Process(m *host.Module) error {
	var items []*host.Item
	for _, out := range m.Outputs() {
		if m.IsResolved(out.Name) {
			continue
		}
		switch out.Value.(type) {
		case legacy.Collection, roitree.Tree:
			items = append(items, out)
			m.Resolve(out.Name)
		}
	}

	if p.cache.Get(CacheKey) != nil {
		return roierr.IllegalState("unexpected cached ROIs")
	}
	if len(items) > 0 {
		p.cache.Put(CacheKey, &Diverted{Items: items})
		p.logger.Debug("ROI outputs diverted", "module", m.Name, "count", len(items))
	}
	return nil
}

// AttachPostprocessor attaches diverted outputs that name their targets.
// Outputs without a directive stay in the cache for ActivePostprocessor.
type AttachPostprocessor struct {
	cache  *host.Cache
	rois   Adder
	logger *slog.Logger
}

func NewAttachPostprocessor(cache *host.Cache, rois Adder, logger *slog.Logger) *AttachPostprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttachPostprocessor{cache: cache, rois: rois, logger: logger}
}

func (p *AttachPostprocessor) Process(m *host.Module) error {
	d, ok := p.cache.Get(CacheKey).(*Diverted)
	if !ok {
		return nil
	}

	var remaining []*host.Item
	for _, it := range d.Items {
		names, ok := it.Attribute(AttachAttribute)
		if !ok {
			remaining = append(remaining, it)
			continue
		}
		for _, target := range p.targets(m, names) {
			if err := p.rois.Add(it.Value, target); err != nil {
				return fmt.Errorf("failed to attach %s: %w", it.Name, err)
			}
		}
	}

	if len(remaining) == 0 {
		p.cache.Put(CacheKey, nil)
		return nil
	}
	d.Items = remaining
	return nil
}

func (p *AttachPostprocessor) targets(m *host.Module, names string) []any {
	var out []any
	for _, name := range attachSeparator.Split(names, -1) {
		if v := m.Input(name); v != nil {
			out = append(out, v)
		} else if v := m.Output(name); v != nil {
			out = append(out, v)
		} else {
			p.logger.Error("No item named "+name+" to attach ROI to!", "module", m.Name)
		}
	}
	return out
}

// ActivePostprocessor attaches whatever is left in the cache to the active
// image and makes its overlay visible.
type ActivePostprocessor struct {
	cache   *host.Cache
	display *host.Display
	rois    Adder
}

func NewActivePostprocessor(cache *host.Cache, display *host.Display, rois Adder) *ActivePostprocessor {
	return &ActivePostprocessor{cache: cache, display: display, rois: rois}
}

func (p *ActivePostprocessor) Process(m *host.Module) error {
	d, ok := p.cache.Take(CacheKey).(*Diverted)
	if !ok {
		return nil
	}
	img := p.display.Active()
	if img == nil {
		return roierr.InvalidArgument("no active image")
	}
	for _, it := range d.Items {
		if err := p.rois.Add(it.Value, img); err != nil {
			return fmt.Errorf("failed to attach %s: %w", it.Name, err)
		}
	}
	img.SetHideOverlay(false)
	return nil
}

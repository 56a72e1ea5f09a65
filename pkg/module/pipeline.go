package module

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/host"
)

// Processor is a hook run before or after a module step.
type Processor interface {
	Process(m *host.Module) error
}

// Step is the computation a module run performs.
type Step func(ctx context.Context, m *host.Module) error

// Pipeline runs module steps with the ROI hooks around them, in host
// order: preprocessing, the step, then caching, named attachment and
// active-image attachment.
type Pipeline struct {
	pre    []Processor
	post   []Processor
	logger *slog.Logger
}

// NewPipeline wires the standard hooks around a shared display and cache.
func NewPipeline(display *host.Display, cache *host.Cache, reg *convert.Registry, rois Adder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		pre: []Processor{NewPreprocessor(display, reg)},
		post: []Processor{
			NewCachePostprocessor(cache, logger),
			NewAttachPostprocessor(cache, rois, logger),
			NewActivePostprocessor(cache, display, rois),
		},
		logger: logger,
	}
}

// Run executes step on m.
func (p *Pipeline) Run(ctx context.Context, m *host.Module, step Step) error {
	for _, h := range p.pre {
		if err := h.Process(m); err != nil {
			return fmt.Errorf("preprocessing %s failed: %w", m.Name, err)
		}
	}
	if err := step(ctx, m); err != nil {
		return fmt.Errorf("module %s failed: %w", m.Name, err)
	}
	for _, h := range p.post {
		if err := h.Process(m); err != nil {
			return fmt.Errorf("postprocessing %s failed: %w", m.Name, err)
		}
	}
	p.logger.Info("module completed", "module", m.Name)
	return nil
}

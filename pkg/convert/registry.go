package convert

import (
	"fmt"
	"sort"
	"sync"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/mapping"
	"github.com/menta2k/roi-bridge/pkg/roierr"
)

// Registry is a priority-ordered converter table. Lookups pick the highest
// priority converter that accepts the source and produces the requested
// type; ties go to the converter registered first.
type Registry struct {
	mu         sync.RWMutex
	converters []*Converter
	cache      *mapping.Cache
}

// NewRegistry returns a registry holding the shape converters. cache may be
// nil, in which case legacy ROIs are converted without being tracked.
func NewRegistry(cache *mapping.Cache) *Registry {
	r := &Registry{cache: cache}
	r.Register(r.shapeConverters()...)
	return r
}

// Cache returns the mapping cache the converters update.
func (r *Registry) Cache() *mapping.Cache { return r.cache }

// Register adds converters.
func (r *Registry) Register(cs ...*Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters = append(r.converters, cs...)
	sort.SliceStable(r.converters, func(i, j int) bool {
		return r.converters[i].Priority > r.converters[j].Priority
	})
}

// Converters returns the registered converters, highest priority first.
func (r *Registry) Converters() []*Converter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Converter, len(r.converters))
	copy(out, r.converters)
	return out
}

// Lookup returns the converter that would handle src -> dest.
func (r *Registry) Lookup(src any, dest Type) (*Converter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.converters {
		if c.CanConvert(src, dest) {
			return c, nil
		}
	}
	return nil, roierr.InvalidArgument("no converter from %s (%T) to %s", TypeOf(src), src, dest)
}

// Convert converts src to dest using the best converter.
func (r *Registry) Convert(src any, dest Type) (any, error) {
	c, err := r.Lookup(src, dest)
	if err != nil {
		return nil, err
	}
	return c.Convert(src, dest)
}

// ToMask converts a legacy ROI (or anything else convertible) to a
// predicate.
func (r *Registry) ToMask(src any) (geom.Predicate, error) {
	out, err := r.Convert(src, AnyMask)
	if err != nil {
		return nil, err
	}
	p, ok := out.(geom.Predicate)
	if !ok {
		return nil, fmt.Errorf("%w: converter returned %T", roierr.ErrIllegalState, out)
	}
	return p, nil
}

// ToLegacy converts a predicate (or anything else convertible) to a
// legacy ROI.
func (r *Registry) ToLegacy(src any) (*legacy.Roi, error) {
	out, err := r.Convert(src, AnyLegacy)
	if err != nil {
		return nil, err
	}
	roi, ok := out.(*legacy.Roi)
	if !ok {
		return nil, fmt.Errorf("%w: converter returned %T", roierr.ErrIllegalState, out)
	}
	return roi, nil
}

func (r *Registry) track(roi *legacy.Roi) error {
	if r.cache == nil {
		return nil
	}
	_, _, err := r.cache.Track(roi)
	return err
}

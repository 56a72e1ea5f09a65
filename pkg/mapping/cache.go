// Package mapping tracks which server shape record each legacy ROI came
// from. Because the host clones ROIs freely, entries are keyed by object
// and re-associated through a stable identity property stored on the ROI.
package mapping

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/omero"
)

// Cache maps legacy ROIs to server shape records. It is safe for concurrent
// use; lookup-then-rekey sequences run under one lock.
type Cache struct {
	mu      sync.Mutex
	entries map[*legacy.Roi]*omero.ShapeData
	order   []*legacy.Roi
	next    atomic.Int64
}

// New returns an empty cache whose identity counter starts at 1.
func New() *Cache {
	return &Cache{entries: make(map[*legacy.Roi]*omero.ShapeData)}
}

// NextID returns a process-unique, monotonically increasing identifier.
// It is the only source of stable identities.
func (c *Cache) NextID() int64 {
	return c.next.Add(1)
}

// Add maps key to shape. key is unwrapped first and must resolve to a
// legacy ROI. If another ROI carrying the same stable identity is already
// mapped, key is a clone of it: the existing record moves to key and shape
// is discarded. Adding to a key that is already mapped replaces its record.
func (c *Cache) Add(key any, shape *omero.ShapeData) error {
	roi, err := UnwrapRoi(key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, own := c.entries[roi]; own {
		c.putLocked(roi, shape)
		return nil
	}
	if _, ok := c.rekeyLocked(roi); ok {
		return nil
	}
	c.putLocked(roi, shape)
	return nil
}

// Track ensures roi carries a stable identity and adopts any mapping held
// by an earlier clone of it. It returns the record now mapped to roi.
func (c *Cache) Track(key any) (*omero.ShapeData, bool, error) {
	roi, err := UnwrapRoi(key)
	if err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	shape, ok := c.rekeyLocked(roi)
	return shape, ok, nil
}

// Get returns the record mapped to key without touching stable identities.
func (c *Cache) Get(key any) (*omero.ShapeData, bool) {
	roi, err := UnwrapRoi(key)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	shape, ok := c.entries[roi]
	return shape, ok
}

// Remove drops the mapping for key.
func (c *Cache) Remove(key any) {
	roi, err := UnwrapRoi(key)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(roi)
}

// Keys returns the mapped ROIs in insertion order.
func (c *Cache) Keys() []*legacy.Roi {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*legacy.Roi, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// rekeyLocked assigns a stable identity to roi if it lacks one, then moves
// a mapping held by another ROI with the same identity onto roi.
func (c *Cache) rekeyLocked(roi *legacy.Roi) (*omero.ShapeData, bool) {
	id, ok := roi.StableID()
	if !ok {
		roi.SetStableID(strconv.FormatInt(c.NextID(), 10))
		return c.entries[roi], c.entries[roi] != nil
	}
	c.observe(id)

	if shape, ok := c.entries[roi]; ok {
		return shape, true
	}
	for _, k := range c.order {
		if other, _ := k.StableID(); other == id && k != roi {
			shape := c.entries[k]
			c.removeLocked(k)
			c.putLocked(roi, shape)
			return shape, true
		}
	}
	return nil, false
}

// observe keeps the counter ahead of identities read from persisted ROIs so
// freshly generated ones never collide with them.
func (c *Cache) observe(id string) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return
	}
	for {
		cur := c.next.Load()
		if n <= cur || c.next.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (c *Cache) putLocked(roi *legacy.Roi, shape *omero.ShapeData) {
	if _, ok := c.entries[roi]; !ok {
		c.order = append(c.order, roi)
	}
	c.entries[roi] = shape
}

func (c *Cache) removeLocked(roi *legacy.Roi) {
	if _, ok := c.entries[roi]; !ok {
		return
	}
	delete(c.entries, roi)
	for i, k := range c.order {
		if k == roi {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

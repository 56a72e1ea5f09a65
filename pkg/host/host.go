// Package host models the parts of the image host the ROI layer talks to:
// displayed images with overlays, tree-typed datasets, the active display,
// module runs with their parameters, and the shared object cache.
package host

import (
	"fmt"
	"sync"

	"github.com/menta2k/roi-bridge/pkg/legacy"
)

// PropROIs is the dataset property holding its ROI tree.
const PropROIs = "rois"

// Image is a displayed image carrying a legacy overlay.
type Image struct {
	ID    int64
	Title string

	mu          sync.Mutex
	overlay     legacy.Collection
	hideOverlay bool
}

func NewImage(id int64, title string) *Image {
	return &Image{ID: id, Title: title}
}

// Overlay returns the image overlay, or nil if it has none.
func (i *Image) Overlay() legacy.Collection {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.overlay
}

func (i *Image) SetOverlay(c legacy.Collection) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.overlay = c
}

func (i *Image) HideOverlay() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.hideOverlay
}

func (i *Image) SetHideOverlay(hide bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.hideOverlay = hide
}

func (i *Image) String() string {
	return fmt.Sprintf("Image[%d %q]", i.ID, i.Title)
}

// Dataset is a tree-typed image. Its ROIs live in the PropROIs property.
type Dataset struct {
	Name string

	mu    sync.Mutex
	props map[string]any
}

func NewDataset(name string) *Dataset {
	return &Dataset{Name: name, props: make(map[string]any)}
}

func (d *Dataset) Property(key string) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.props[key]
}

func (d *Dataset) SetProperty(key string, v any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.props[key] = v
}

// Update runs fn with the property map locked.
func (d *Dataset) Update(fn func(props map[string]any)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.props)
}

// Display tracks the image the user is working on.
type Display struct {
	mu     sync.RWMutex
	active *Image
}

func NewDisplay() *Display {
	return &Display{}
}

// Active returns the current image, or nil.
func (d *Display) Active() *Image {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

func (d *Display) SetActive(img *Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = img
}

// Cache is the process-wide object cache processors share.
type Cache struct {
	mu      sync.Mutex
	entries map[string]any
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]any)}
}

func (c *Cache) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// Put stores v under key. A nil v removes the entry.
func (c *Cache) Put(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v == nil {
		delete(c.entries, key)
		return
	}
	c.entries[key] = v
}

// Take returns and removes the entry under key.
func (c *Cache) Take(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.entries[key]
	delete(c.entries, key)
	return v
}

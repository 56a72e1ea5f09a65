package host

import (
	"sync"
	"testing"

	"github.com/menta2k/roi-bridge/pkg/legacy"
)

func TestCachePutNilDeletes(t *testing.T) {
	c := NewCache()
	c.Put("k", 1)
	if c.Get("k") != 1 {
		t.Fatal("Expected value stored")
	}
	c.Put("k", nil)
	if c.Get("k") != nil {
		t.Error("Expected nil Put to delete the entry")
	}
}

func TestCacheTake(t *testing.T) {
	c := NewCache()
	c.Put("k", "v")
	if got := c.Take("k"); got != "v" {
		t.Errorf("Expected v, got %v", got)
	}
	if c.Take("k") != nil {
		t.Error("Expected entry removed after Take")
	}
}

func TestModuleParameters(t *testing.T) {
	m := NewModule("m")
	in := m.AddInput("tree", nil)
	in.SetAttribute("type", "roiTree")
	m.AddOutput("count", 3)

	if v, ok := in.Attribute("type"); !ok || v != "roiTree" {
		t.Errorf("Expected attribute roiTree, got %q", v)
	}
	m.SetInput("tree", "filled")
	if m.Input("tree") != "filled" {
		t.Errorf("Expected input set, got %v", m.Input("tree"))
	}
	if m.Output("count") != 3 || m.Output("missing") != nil {
		t.Error("Unexpected output lookup")
	}
	if m.IsResolved("count") {
		t.Error("Expected output unresolved")
	}
	m.Resolve("count")
	if !m.IsResolved("count") {
		t.Error("Expected output resolved")
	}
}

func TestImageOverlay(t *testing.T) {
	img := NewImage(4, "cells")
	if img.Overlay() != nil {
		t.Error("Expected no overlay")
	}
	img.SetOverlay(legacy.NewOverlay(legacy.NewRectangle(0, 0, 1, 1)))
	img.SetHideOverlay(true)
	if img.Overlay().Size() != 1 || !img.HideOverlay() {
		t.Error("Unexpected overlay state")
	}
}

func TestDatasetUpdateIsAtomic(t *testing.T) {
	ds := NewDataset("d")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds.Update(func(props map[string]any) {
				n, _ := props["n"].(int)
				props["n"] = n + 1
			})
		}()
	}
	wg.Wait()
	if ds.Property("n") != 50 {
		t.Errorf("Expected 50, got %v", ds.Property("n"))
	}
}

func TestDisplayActive(t *testing.T) {
	d := NewDisplay()
	img := NewImage(1, "a")
	d.SetActive(img)
	if d.Active() != img {
		t.Error("Expected active image")
	}
}

package types

import "image"

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Clamp returns the box with every field limited to [0,1].
func (b Box) Clamp() Box {
	return Box{X: clamp(b.X, 0, 1), Y: clamp(b.Y, 0, 1), W: clamp(b.W, 0, 1), H: clamp(b.H, 0, 1)}
}

// Empty reports whether the box covers no area.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Rect converts the box to pixel coordinates of a w x h image. A box that
// rounds to nothing still covers one pixel.
func (b Box) Rect(w, h int) image.Rectangle {
	x0 := int(clamp(b.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(b.Y, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(b.X+b.W, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(b.Y+b.H, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1)
}

// Region is one area of interest proposed by a vision model.
type Region struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Suggestion is the complete answer of the vision model for one image.
type Suggestion struct {
	Regions     []Region `json:"regions"`
	Description string   `json:"description"`
}

// SuggestOptions control how an image is sent to the model and which
// regions are kept.
type SuggestOptions struct {
	Model         string
	MaxDim        int
	JPEGQuality   int
	MinConfidence float64
	MaxRegions    int
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

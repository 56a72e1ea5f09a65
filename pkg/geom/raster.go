package geom

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"golang.org/x/image/vector"

	"github.com/menta2k/roi-bridge/pkg/roierr"
)

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

// coverageThreshold is the anti-aliased coverage at which a pixel counts as
// inside a filled outline.
const coverageThreshold = 128

// ellipseSegments is the number of chords used to outline an ellipse.
const ellipseSegments = 64

// PixelBounds returns the smallest pixel rectangle covering p.
func PixelBounds(p Predicate) image.Rectangle {
	b := p.Bounds()
	if b.IsEmpty() || math.IsInf(b.X.Lo, 0) || math.IsInf(b.Y.Lo, 0) || math.IsInf(b.X.Hi, 0) || math.IsInf(b.Y.Hi, 0) {
		return image.Rectangle{}
	}
	r := image.Rect(
		int(math.Floor(b.X.Lo)), int(math.Floor(b.Y.Lo)),
		int(math.Ceil(b.X.Hi)), int(math.Ceil(b.Y.Hi)),
	)
	if r.Dx() == 0 {
		r.Max.X++
	}
	if r.Dy() == 0 {
		r.Max.Y++
	}
	return r
}

// Rasterize converts p into a pixel mask interval. Filled outlines go
// through the vector rasterizer; everything else is sampled at pixel
// centers.
func Rasterize(p Predicate) (*Mask, error) {
	p = Resolve(p)
	if m, ok := p.(*Mask); ok {
		return m, nil
	}
	if p.Kind() == KindText {
		return nil, roierr.Unsupported("rasterize: text is not a region")
	}
	bounds := PixelBounds(p)
	if bounds.Empty() {
		return nil, roierr.InvalidArgument("rasterize: %s has no finite extent", p.Kind())
	}
	if outlines := outlinesOf(p); outlines != nil {
		return fillOutlines(outlines, bounds), nil
	}
	return sample(p, bounds), nil
}

func outlinesOf(p Predicate) [][]r2.Point {
	switch v := p.(type) {
	case *Box:
		return [][]r2.Point{{v.Min, {X: v.Max.X, Y: v.Min.Y}, v.Max, {X: v.Min.X, Y: v.Max.Y}}}
	case *Ellipsoid:
		outline := make([]r2.Point, ellipseSegments)
		for i := range outline {
			theta := 2 * math.Pi * float64(i) / ellipseSegments
			outline[i] = r2.Point{
				X: v.Center.X + v.Radii.X*math.Cos(theta),
				Y: v.Center.Y + v.Radii.Y*math.Sin(theta),
			}
		}
		return [][]r2.Point{outline}
	case *Polygon:
		return [][]r2.Point{v.Vertices}
	case *Region:
		if v.Closed {
			return v.Contours
		}
	}
	return nil
}

func fillOutlines(outlines [][]r2.Point, bounds image.Rectangle) *Mask {
	w, h := bounds.Dx(), bounds.Dy()
	z := vector.NewRasterizer(w, h)
	ox, oy := float64(bounds.Min.X), float64(bounds.Min.Y)
	for _, outline := range outlines {
		if len(outline) < 3 {
			continue
		}
		z.MoveTo(float32(outline[0].X-ox), float32(outline[0].Y-oy))
		for _, pt := range outline[1:] {
			z.LineTo(float32(pt.X-ox), float32(pt.Y-oy))
		}
		z.ClosePath()
	}
	coverage := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(coverage, coverage.Bounds(), image.Opaque, image.Point{})

	pix := image.NewAlpha(bounds)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if coverage.AlphaAt(x, y).A >= coverageThreshold {
				pix.Pix[pix.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)] = 0xff
			}
		}
	}
	return &Mask{Pix: pix}
}

func sample(p Predicate, bounds image.Rectangle) *Mask {
	pix := image.NewAlpha(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			center := r2.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			corner := r2.Point{X: float64(x), Y: float64(y)}
			if p.Test(center) || p.Test(corner) {
				pix.Pix[pix.PixOffset(x, y)] = 0xff
			}
		}
	}
	return &Mask{Pix: pix}
}

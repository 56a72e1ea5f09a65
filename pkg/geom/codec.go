package geom

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/golang/geo/r2"

	"github.com/menta2k/roi-bridge/pkg/roierr"
)

type wirePredicate struct {
	Kind     string         `json:"kind"`
	Points   [][2]float64   `json:"points,omitempty"`
	Contours [][][2]float64 `json:"contours,omitempty"`
	Closed   bool           `json:"closed,omitempty"`
	Rect     []int          `json:"rect,omitempty"`
	Text     string         `json:"text,omitempty"`
}

// Marshal encodes p as JSON. Pixel data of a Mask is not included; only its
// rectangle is, and the caller stores the pixels separately.
func Marshal(p Predicate) ([]byte, error) {
	w := wirePredicate{Kind: Resolve(p).Kind().String()}
	switch v := Resolve(p).(type) {
	case *Box:
		w.Points = toWire([]r2.Point{v.Min, v.Max})
	case *Ellipsoid:
		w.Points = toWire([]r2.Point{v.Center, v.Radii})
	case *Polygon:
		w.Points = toWire(v.Vertices)
	case *Polyline:
		w.Points = toWire(v.Vertices)
	case *Points:
		w.Points = toWire(v.Points)
	case *Line:
		w.Points = toWire([]r2.Point{v.A, v.B})
	case *Mask:
		r := v.Pix.Rect
		w.Rect = []int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
	case *Region:
		for _, c := range v.Contours {
			w.Contours = append(w.Contours, toWire(c))
		}
		w.Closed = v.Closed
	case *Text:
		w.Points = toWire([]r2.Point{v.Anchor})
		w.Text = v.Content
	default:
		return nil, roierr.Unsupported("cannot encode %s predicate", p.Kind())
	}
	return json.Marshal(w)
}

// Unmarshal decodes a predicate written by Marshal. pix supplies the pixels
// for masks and is ignored for every other kind.
func Unmarshal(data []byte, pix *image.Alpha) (Predicate, error) {
	var w wirePredicate
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse predicate: %w", err)
	}
	pts := fromWire(w.Points)
	need := func(n int) error {
		if len(pts) < n {
			return roierr.InvalidArgument("%s needs %d points, got %d", w.Kind, n, len(pts))
		}
		return nil
	}
	switch w.Kind {
	case "box":
		if err := need(2); err != nil {
			return nil, err
		}
		return NewBox(pts[0], pts[1]), nil
	case "ellipsoid":
		if err := need(2); err != nil {
			return nil, err
		}
		return NewEllipsoid(pts[0], pts[1]), nil
	case "polygon":
		return NewPolygon(pts), nil
	case "polyline":
		return NewPolyline(pts), nil
	case "points":
		return NewPoints(pts), nil
	case "line":
		if err := need(2); err != nil {
			return nil, err
		}
		return NewLine(pts[0], pts[1]), nil
	case "mask":
		if len(w.Rect) != 4 {
			return nil, roierr.InvalidArgument("mask needs a rectangle")
		}
		rect := image.Rect(w.Rect[0], w.Rect[1], w.Rect[2], w.Rect[3])
		if pix == nil {
			pix = image.NewAlpha(rect)
		}
		if pix.Rect.Size() != rect.Size() {
			return nil, roierr.InvalidArgument("mask pixels %v do not fit rectangle %v", pix.Rect, rect)
		}
		if pix.Rect != rect {
			shifted := image.NewAlpha(rect)
			for y := 0; y < rect.Dy(); y++ {
				src := pix.Pix[y*pix.Stride : y*pix.Stride+rect.Dx()]
				copy(shifted.Pix[y*shifted.Stride:], src)
			}
			pix = shifted
		}
		return NewMask(pix), nil
	case "region":
		contours := make([][]r2.Point, len(w.Contours))
		for i, c := range w.Contours {
			contours[i] = fromWire(c)
		}
		return NewRegion(contours, w.Closed), nil
	case "text":
		if err := need(1); err != nil {
			return nil, err
		}
		return NewText(pts[0], w.Text), nil
	}
	return nil, roierr.InvalidArgument("unknown predicate kind %q", w.Kind)
}

func toWire(pts []r2.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

func fromWire(pts [][2]float64) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: p[0], Y: p[1]}
	}
	return out
}

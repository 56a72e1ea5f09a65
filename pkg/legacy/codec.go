package legacy

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
)

// overlayFile is the on-disk layout of an exported overlay.
type overlayFile struct {
	DrawNames bool      `json:"draw_names,omitempty"`
	Rois      []wireRoi `json:"rois"`
}

type wireRoi struct {
	Type        string            `json:"type"`
	Name        string            `json:"name,omitempty"`
	X           float64           `json:"x,omitempty"`
	Y           float64           `json:"y,omitempty"`
	Width       float64           `json:"width,omitempty"`
	Height      float64           `json:"height,omitempty"`
	Points      [][2]float64      `json:"points,omitempty"`
	Contours    [][][2]float64    `json:"contours,omitempty"`
	Mask        *wireMask         `json:"mask,omitempty"`
	Text        string            `json:"text,omitempty"`
	Font        *Font             `json:"font,omitempty"`
	Position    Position          `json:"position"`
	Stroke      string            `json:"stroke,omitempty"`
	Fill        string            `json:"fill,omitempty"`
	StrokeWidth float64           `json:"stroke_width,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

type wireMask struct {
	Rect [4]int `json:"rect"`
	Pix  []byte `json:"pix"`
}

// WriteJSON encodes the ROIs of c, properties included.
func WriteJSON(w io.Writer, c Collection) error {
	file := overlayFile{DrawNames: c.DrawingNames(), Rois: []wireRoi{}}
	for _, r := range c.Rois() {
		file.Rois = append(file.Rois, toWire(r))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	return nil
}

// ReadJSON decodes an overlay written by WriteJSON.
func ReadJSON(r io.Reader) (*Overlay, error) {
	var file overlayFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse overlay: %w", err)
	}
	o := NewOverlay()
	o.drawNames = file.DrawNames
	for i, w := range file.Rois {
		roi, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("roi %d: %w", i, err)
		}
		o.Add(roi)
	}
	return o, nil
}

func toWire(r *Roi) wireRoi {
	w := wireRoi{
		Type:        r.Type.String(),
		Name:        r.Name,
		X:           r.X,
		Y:           r.Y,
		Width:       r.Width,
		Height:      r.Height,
		Points:      pointsToWire(r.Points),
		Text:        r.Text,
		Position:    r.Position,
		Stroke:      FormatColor(r.StrokeColor),
		Fill:        FormatColor(r.FillColor),
		StrokeWidth: r.StrokeWidth,
		Properties:  r.props,
	}
	for _, c := range r.Contours {
		w.Contours = append(w.Contours, pointsToWire(c))
	}
	if r.Mask != nil {
		b := r.Mask.Rect
		w.Mask = &wireMask{Rect: [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}, Pix: r.Mask.Pix}
	}
	if r.Type == Text {
		f := r.Font
		w.Font = &f
	}
	return w
}

func fromWire(w wireRoi) (*Roi, error) {
	typ, err := ParseType(w.Type)
	if err != nil {
		return nil, err
	}
	r := &Roi{
		Type:        typ,
		Name:        w.Name,
		X:           w.X,
		Y:           w.Y,
		Width:       w.Width,
		Height:      w.Height,
		Points:      pointsFromWire(w.Points),
		Text:        w.Text,
		Position:    w.Position,
		StrokeWidth: w.StrokeWidth,
	}
	for _, c := range w.Contours {
		r.Contours = append(r.Contours, pointsFromWire(c))
	}
	if w.Mask != nil {
		rect := image.Rect(w.Mask.Rect[0], w.Mask.Rect[1], w.Mask.Rect[2], w.Mask.Rect[3])
		if len(w.Mask.Pix) != rect.Dx()*rect.Dy() {
			return nil, fmt.Errorf("mask has %d pixels, expected %d", len(w.Mask.Pix), rect.Dx()*rect.Dy())
		}
		r.Mask = &image.Alpha{Pix: w.Mask.Pix, Stride: rect.Dx(), Rect: rect}
	}
	if w.Font != nil {
		r.Font = *w.Font
	}
	if r.StrokeColor, err = ParseColor(w.Stroke); err != nil {
		return nil, err
	}
	if r.FillColor, err = ParseColor(w.Fill); err != nil {
		return nil, err
	}
	for k, v := range w.Properties {
		r.SetProperty(k, v)
	}
	return r, nil
}

// FormatColor renders c as #rrggbbaa, or "" for nil.
func FormatColor(c color.Color) string {
	if c == nil {
		return ""
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}

// ParseColor accepts #rrggbb or #rrggbbaa. The empty string yields nil.
func ParseColor(s string) (color.Color, error) {
	if s == "" {
		return nil, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func pointsToWire(pts []r2.Point) [][2]float64 {
	if len(pts) == 0 {
		return nil
	}
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

func pointsFromWire(pts [][2]float64) []r2.Point {
	if len(pts) == 0 {
		return nil
	}
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: p[0], Y: p[1]}
	}
	return out
}

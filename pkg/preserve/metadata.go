// Package preserve carries the attributes a mask predicate cannot hold
// (stack position, stroke and fill, stroke width, text and font) between
// legacy ROIs and server shape records, and registers the server-aware
// converters that use it.
package preserve

import (
	"github.com/menta2k/roi-bridge/pkg/convert"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/omero"
)

// Env describes the host environment at conversion time.
type Env struct {
	// Macro is true when the host runs non-interactively.
	Macro bool
	// ShowAllSliceOnly mirrors the host preference of the same name.
	ShowAllSliceOnly bool
}

// IgnoreLegacyPosition reports whether the position stashed from the server
// overrides the live legacy position. The host rewrites positions of ROIs
// shown on all slices in interactive sessions, so the stash wins there.
func (e Env) IgnoreLegacyPosition() bool {
	return !e.ShowAllSliceOnly && !e.Macro
}

// ToShape copies the legacy attributes of roi onto s. A zero position on an
// axis leaves the server index untouched.
func ToShape(roi *legacy.Roi, s *omero.ShapeData) {
	if roi.Position.Z != 0 {
		s.Z = omero.Index(roi.Position.Z - 1)
	}
	if roi.Position.T != 0 {
		s.T = omero.Index(roi.Position.T - 1)
	}
	if roi.Position.C != 0 {
		s.C = omero.Index(roi.Position.C - 1)
	}
	copyStyle(roi, s)
	copyText(roi, s)
}

// ToRoi copies the attributes of s onto a legacy ROI freshly created from
// it and stashes the original server position in the property bag.
func ToRoi(s *omero.ShapeData, roi *legacy.Roi) {
	roi.Position = legacy.Position{C: oneBased(s.C), Z: oneBased(s.Z), T: oneBased(s.T)}
	roi.SetOriginalPosition(stash(s.Z), stash(s.T), stash(s.C))

	if w := s.Settings.StrokeWidth; w != nil {
		// Widths in units without a pixel equivalent are left at the
		// legacy default.
		if v, err := w.In(omero.Pixel); err == nil {
			roi.StrokeWidth = v
		}
	}
	if s.Settings.Stroke != nil {
		roi.StrokeColor = s.Settings.Stroke
	}
	if s.Settings.Fill != nil {
		roi.FillColor = s.Settings.Fill
	}

	roi.Name = s.Text
	if roi.Type == legacy.Text {
		roi.Text = s.Text
		roi.Font.Family = s.Settings.FontFamily
		if fs := s.Settings.FontSize; fs != nil {
			if v, err := fs.In(omero.Point); err == nil {
				roi.Font.Size = v
			}
		}
		roi.Font.Bold, roi.Font.Italic = s.Settings.FontStyle.Flags()
	}
	if rd := s.ROI(); rd != nil {
		roi.SetCollectionID(rd.ID)
	}
}

// Sync writes the current state of roi back onto s, the shape roi is a view
// of. Positions follow the conflict rule of env.
func Sync(roi *legacy.Roi, s *omero.ShapeData, env Env) error {
	shape, err := convert.ShapeOf(roi)
	if err != nil {
		return err
	}
	s.Geometry = shape
	if err := s.Normalize(); err != nil {
		return err
	}

	ignore := env.IgnoreLegacyPosition()
	z, t, c, stashed := roi.OriginalPosition()
	s.Z = ResolvePosition(roi.Position.Z, z, stashed, ignore)
	s.T = ResolvePosition(roi.Position.T, t, stashed, ignore)
	s.C = ResolvePosition(roi.Position.C, c, stashed, ignore)

	copyStyle(roi, s)
	copyText(roi, s)
	return nil
}

// ResolvePosition picks the 0-based server index for one axis. live is the
// 1-based legacy position (0 = unset); stashed is the 0-based original
// server index (negative = none).
func ResolvePosition(live, stashed int, haveStash, ignoreLive bool) *int {
	if ignoreLive && haveStash {
		if stashed < 0 {
			return nil
		}
		return omero.Index(stashed)
	}
	if live == 0 {
		return nil
	}
	return omero.Index(live - 1)
}

func copyStyle(roi *legacy.Roi, s *omero.ShapeData) {
	if roi.StrokeWidth > 0 {
		s.Settings.StrokeWidth = omero.NewLength(roi.StrokeWidth, omero.Pixel)
	}
	if roi.StrokeColor != nil {
		s.Settings.Stroke = roi.StrokeColor
	}
	if roi.FillColor != nil {
		s.Settings.Fill = roi.FillColor
	}
}

func copyText(roi *legacy.Roi, s *omero.ShapeData) {
	if roi.Type != legacy.Text {
		if roi.Name != "" {
			s.Text = roi.Name
		}
		return
	}
	s.Text = roi.Text
	if roi.Font.Family != "" {
		s.Settings.FontFamily = roi.Font.Family
	}
	if roi.Font.Size > 0 {
		s.Settings.FontSize = omero.NewLength(roi.Font.Size, omero.Point)
	}
	s.Settings.FontStyle = omero.StyleOf(roi.Font.Bold, roi.Font.Italic)
}

func oneBased(p *int) int {
	if p == nil {
		return 0
	}
	return *p + 1
}

func stash(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

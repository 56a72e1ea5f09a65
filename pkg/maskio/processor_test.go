package maskio

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func createTestMask() *image.Alpha {
	m := image.NewAlpha(image.Rect(10, 20, 26, 32))
	for y := 22; y < 30; y++ {
		for x := 12; x < 24; x++ {
			m.SetAlpha(x, y, color.Alpha{A: 255})
		}
	}
	m.SetAlpha(10, 20, color.Alpha{A: 77})
	return m
}

func sameCoverage(t *testing.T, want, got *image.Alpha) {
	t.Helper()
	if want.Rect.Size() != got.Rect.Size() {
		t.Fatalf("Expected size %v, got %v", want.Rect.Size(), got.Rect.Size())
	}
	for y := 0; y < want.Rect.Dy(); y++ {
		for x := 0; x < want.Rect.Dx(); x++ {
			w := want.AlphaAt(want.Rect.Min.X+x, want.Rect.Min.Y+y).A
			g := got.AlphaAt(got.Rect.Min.X+x, got.Rect.Min.Y+y).A
			if w != g {
				t.Fatalf("Pixel (%d,%d): expected %d, got %d", x, y, w, g)
			}
		}
	}
}

func TestMaskRoundTrip(t *testing.T) {
	p := NewProcessor()
	for _, format := range []string{FormatPNG, FormatWebP} {
		t.Run(format, func(t *testing.T) {
			m := createTestMask()
			data, err := p.EncodeMask(m, format)
			if err != nil {
				t.Fatalf("EncodeMask failed: %v", err)
			}
			got, err := p.DecodeMask(data)
			if err != nil {
				t.Fatalf("DecodeMask failed: %v", err)
			}
			if got.Rect.Min != (image.Point{}) {
				t.Errorf("Expected decoded mask at origin, got %v", got.Rect.Min)
			}
			sameCoverage(t, m, got)
		})
	}
}

func TestSaveAndLoadMask(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	for _, format := range []string{FormatPNG, FormatWebP} {
		path := filepath.Join(dir, "mask."+format)
		m := createTestMask()
		if err := p.SaveMask(m, path, format); err != nil {
			t.Fatalf("SaveMask(%s) failed: %v", format, err)
		}
		got, err := p.LoadMask(path)
		if err != nil {
			t.Fatalf("LoadMask(%s) failed: %v", format, err)
		}
		sameCoverage(t, m, got)
	}
}

func TestEncodeMaskUnsupportedFormat(t *testing.T) {
	p := NewProcessor()
	if _, err := p.EncodeMask(createTestMask(), "tiff"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestRenderBounds(t *testing.T) {
	p := NewProcessor()
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	red := color.NRGBA{R: 255, A: 255}
	out := p.RenderBounds(img, []image.Rectangle{image.Rect(10, 10, 50, 40), image.Rect(90, 90, 200, 200)}, red)

	if out.NRGBAAt(10, 10) != red || out.NRGBAAt(49, 39) != red {
		t.Error("Expected outline corners drawn")
	}
	if out.NRGBAAt(30, 25) == red {
		t.Error("Expected interior untouched")
	}
	if out.NRGBAAt(95, 90) != red {
		t.Error("Expected clipped rectangle drawn up to the border")
	}
	if img.NRGBAAt(10, 10) == red {
		t.Error("Expected source image untouched")
	}
}

func TestLoadImageFromURLRejectsScheme(t *testing.T) {
	p := NewProcessor()
	if _, err := p.LoadImageFromURL("ftp://example.com/a.png"); err == nil {
		t.Error("Expected error for ftp scheme")
	}
}

func BenchmarkEncodeMaskWebP(b *testing.B) {
	p := NewProcessor()
	m := createTestMask()
	for i := 0; i < b.N; i++ {
		if _, err := p.EncodeMask(m, FormatWebP); err != nil {
			b.Fatal(err)
		}
	}
}

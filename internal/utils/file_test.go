package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMaskFilename(t *testing.T) {
	got := MaskFilename("out", 3, 7, 11, "png")
	want := filepath.Join("out", "image3_roi7_shape11.png")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestGenerateOutputFilename(t *testing.T) {
	got := GenerateOutputFilename("/data/slide 1.tif", "out", "_rois", "json")
	want := filepath.Join("out", "slide 1_rois.json")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(" a:b*c? "); got != "a_b_c_" {
		t.Errorf("Expected a_b_c_, got %q", got)
	}
}

func TestIsImageFile(t *testing.T) {
	if !IsImageFile("x.WEBP") || IsImageFile("rois.json") {
		t.Error("Unexpected image file detection")
	}
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if FileExists(dir) {
		t.Error("Expected a directory not to count as a file")
	}
	f := filepath.Join(dir, "f")
	if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(f) {
		t.Error("Expected file to exist")
	}
}

func TestFormatFileSize(t *testing.T) {
	if got := FormatFileSize(2048); got != "2.0 KiB" {
		t.Errorf("Expected 2.0 KiB, got %s", got)
	}
	if got := FormatFileSize(12); got != "12 B" {
		t.Errorf("Expected 12 B, got %s", got)
	}
}

package pdfmerge

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestPxToMM(t *testing.T) {
	got := pxToMM(3508) // A4 height at 300 DPI
	want := 3508.0 * 25.4 / 300.0
	if got != want {
		t.Errorf("pxToMM(3508) = %v, want %v", got, want)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestImageDimensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	writePNG(t, path, 100, 200)

	w, h, err := imageDimensions(path)
	if err != nil {
		t.Fatalf("imageDimensions() error = %v", err)
	}
	if w != 100 || h != 200 {
		t.Errorf("imageDimensions() = (%d, %d), want (100, 200)", w, h)
	}
}

func TestMergeProducesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "0001.png")
	p2 := filepath.Join(dir, "0002.png")
	writePNG(t, p1, 50, 80)
	writePNG(t, p2, 60, 40) // deliberately different dimensions than p1

	out := filepath.Join(dir, "merged.pdf")
	if err := Merge([]string{p1, p2}, out); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("expected merged.pdf to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Error("merged.pdf should not be empty")
	}
}

func TestMergeEmptyInputErrors(t *testing.T) {
	if err := Merge(nil, filepath.Join(t.TempDir(), "merged.pdf")); err == nil {
		t.Fatal("Merge() with no images should error")
	}
}

package capture

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestImage(t *testing.T, name string, w, h int, encode func(*os.File, image.Image) error) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPNG(t *testing.T) {
	path := writeTestImage(t, "tree.png", 3000, 4000, func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})

	photo, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if photo.Width != 3000 || photo.Height != 4000 {
		t.Errorf("dimensions = %dx%d, want 3000x4000", photo.Width, photo.Height)
	}
	if photo.MaxDim() != 4000 {
		t.Errorf("MaxDim() = %d, want 4000", photo.MaxDim())
	}
	if photo.Meta.Focal35() != 0 {
		t.Errorf("expected no lens metadata, got focal35 = %v", photo.Meta.Focal35())
	}
}

func TestLoadJPEGWithoutEXIF(t *testing.T) {
	path := writeTestImage(t, "tree.jpg", 1200, 900, func(f *os.File, img image.Image) error {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 80})
	})

	photo, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if photo.Width != 1200 || photo.Height != 900 {
		t.Errorf("dimensions = %dx%d, want 1200x900", photo.Width, photo.Height)
	}
	if photo.MaxDim() != 1200 {
		t.Errorf("MaxDim() = %d, want 1200", photo.MaxDim())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadUnrecognizedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.jpg")
	if err := os.WriteFile(path, []byte("field notes, not pixels"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error for non-image data")
	}
}

// Package capture loads photos from disk and extracts the pixel geometry and
// lens metadata the calibration tiers consume.
package capture

import (
	"fmt"
	"image"
	"io"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// Photo is a decoded capture: pixel geometry plus whatever lens metadata the
// file carried. Meta fields stay zero when the file has no usable EXIF block.
type Photo struct {
	Path   string
	Width  int
	Height int
	Meta   model.CaptureMeta
}

// MaxDim returns the longer image side in pixels.
func (p *Photo) MaxDim() int {
	if p.Width > p.Height {
		return p.Width
	}
	return p.Height
}

// Load reads the image header and EXIF block at path. A missing or broken
// EXIF block is not an error; phones routinely strip metadata and the
// calibration tiers handle its absence.
func Load(path string) (*Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		// Some webp files slip past the registered sniffer; retry with a
		// full decode before giving up.
		if _, serr := f.Seek(0, io.SeekStart); serr == nil {
			if img, werr := webp.Decode(f); werr == nil {
				b := img.Bounds()
				cfg = image.Config{Width: b.Dx(), Height: b.Dy()}
				err = nil
			}
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode %s: empty image", path)
	}

	photo := &Photo{Path: path, Width: cfg.Width, Height: cfg.Height}
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		readEXIF(f, photo)
	}
	return photo, nil
}

// readEXIF fills lens metadata and corrects rotated orientations.
// Orientations 5 through 8 transpose the frame, so the header width and
// height describe the unrotated sensor readout rather than the image as
// viewed.
func readEXIF(r io.Reader, photo *Photo) {
	x, err := exif.Decode(r)
	if err != nil {
		return
	}
	if tag, err := x.Get(exif.FocalLengthIn35mmFilm); err == nil {
		if v, err := tag.Int(0); err == nil && v > 0 {
			photo.Meta.FocalLength35mm = float64(v)
		}
	}
	if tag, err := x.Get(exif.FocalLength); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 && num > 0 {
			photo.Meta.FocalLength = float64(num) / float64(den)
		}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil && v >= 5 && v <= 8 {
			photo.Width, photo.Height = photo.Height, photo.Width
		}
	}
}

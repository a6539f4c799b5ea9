// Package overlay renders the collected points and the service's
// delineation mask onto the photograph. It is purely presentational: any
// failure here leaves the measurement itself untouched.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

var categoryColors = map[model.PointCategory]color.NRGBA{
	model.PointTrunk:  {R: 230, G: 90, B: 40, A: 255},
	model.PointHeight: {R: 40, G: 120, B: 230, A: 255},
	model.PointCanopy: {R: 40, G: 180, B: 90, A: 255},
	model.PointGirth:  {R: 240, G: 200, B: 40, A: 255},
}

var guideColor = color.NRGBA{R: 240, G: 200, B: 40, A: 160}

// Options control what gets drawn.
type Options struct {
	Points     model.PointSet
	GuideRowPx float64 // girth guide row; negative disables
	MaskPNG    []byte  // service delineation mask, scaled to fit
}

// Render composites the annotations over the photo at path and writes the
// result next to it as <name>.annotated.jpg, returning the output path.
func Render(path string, opts Options) (string, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open photo for annotation: %w", err)
	}
	canvas := imaging.Clone(src)
	b := canvas.Bounds()

	if len(opts.MaskPNG) > 0 {
		if err := drawMask(canvas, opts.MaskPNG); err != nil {
			return "", err
		}
	}
	if opts.GuideRowPx >= 0 && opts.GuideRowPx < float64(b.Dy()) {
		drawGuideRow(canvas, int(opts.GuideRowPx))
	}
	// Crosshair size tracks resolution so annotations stay visible on
	// 12-megapixel captures and thumbnails alike.
	arm := b.Dx() / 60
	if arm < 8 {
		arm = 8
	}
	for _, tp := range opts.Points.Points {
		c, ok := categoryColors[tp.Category]
		if !ok {
			c = color.NRGBA{R: 255, A: 255}
		}
		drawCrosshair(canvas, int(tp.X), int(tp.Y), arm, c)
	}

	out := annotatedPath(path)
	if err := imaging.Save(canvas, out, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("save annotated photo: %w", err)
	}
	return out, nil
}

// drawMask alpha-blends the delineation mask over the canvas, rescaling it
// when the service returned it at a reduced resolution.
func drawMask(canvas *image.NRGBA, maskPNG []byte) error {
	mask, err := png.Decode(bytes.NewReader(maskPNG))
	if err != nil {
		return fmt.Errorf("decode overlay mask: %w", err)
	}
	xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), mask, mask.Bounds(), xdraw.Over, nil)
	return nil
}

func drawGuideRow(img *image.NRGBA, row int) {
	b := img.Bounds()
	for y := row - 1; y <= row+1; y++ {
		if y < b.Min.Y || y >= b.Max.Y {
			continue
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			blend(img, x, y, guideColor)
		}
	}
}

func drawCrosshair(img *image.NRGBA, cx, cy, arm int, c color.NRGBA) {
	b := img.Bounds()
	for t := -1; t <= 1; t++ {
		for d := -arm; d <= arm; d++ {
			setIfInside(img, b, cx+d, cy+t, c)
			setIfInside(img, b, cx+t, cy+d, c)
		}
	}
}

func setIfInside(img *image.NRGBA, b image.Rectangle, x, y int, c color.NRGBA) {
	if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
		img.SetNRGBA(x, y, c)
	}
}

// blend mixes c over the existing pixel by c's alpha.
func blend(img *image.NRGBA, x, y int, c color.NRGBA) {
	old := img.NRGBAAt(x, y)
	a := uint32(c.A)
	inv := 255 - a
	img.SetNRGBA(x, y, color.NRGBA{
		R: uint8((uint32(c.R)*a + uint32(old.R)*inv) / 255),
		G: uint8((uint32(c.G)*a + uint32(old.G)*inv) / 255),
		B: uint8((uint32(c.B)*a + uint32(old.B)*inv) / 255),
		A: 255,
	})
}

func annotatedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".annotated.jpg"
}

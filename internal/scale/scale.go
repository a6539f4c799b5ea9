// Package scale derives the millimeters-per-pixel factor for one capture.
package scale

import (
	"errors"
	"fmt"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

var (
	ErrBadDistance = errors.New("distance must be positive")
	ErrBadConstant = errors.New("camera constant must be positive")
	ErrBadImage    = errors.New("image dimensions must be positive")
)

// Compute derives the scale factor for a capture taken at distanceM meters.
// The longest image side spans distance times the camera constant in
// millimeters at the subject plane, so one pixel covers that span divided by
// the side length. The factor is computed once per session and never
// recomputed after points exist, otherwise previously placed points would
// silently change physical meaning.
func Compute(distanceM float64, c model.CameraConstant, width, height int) (model.ScaleFactor, error) {
	if distanceM <= 0 {
		return model.ScaleFactor{}, fmt.Errorf("%w: got %v", ErrBadDistance, distanceM)
	}
	if !c.Valid() {
		return model.ScaleFactor{}, fmt.Errorf("%w: got %v", ErrBadConstant, c.Value)
	}
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	if maxDim <= 0 {
		return model.ScaleFactor{}, fmt.Errorf("%w: got %dx%d", ErrBadImage, width, height)
	}
	return model.ScaleFactor{MMPerPixel: distanceM * 1000 * c.Value / float64(maxDim)}, nil
}

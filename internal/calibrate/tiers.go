package calibrate

import (
	"errors"
	"fmt"
	"math"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// ErrBadFOV reports a horizontal field of view outside the open (0, 180)
// degree interval.
var ErrBadFOV = errors.New("field of view must be between 0 and 180 degrees")

// storedStrategy replays a previously persisted per-device constant.
type storedStrategy struct{}

func (storedStrategy) Resolve(ev *model.CalibrationEvidence) (model.CameraConstant, bool) {
	if ev.Stored == nil || *ev.Stored <= 0 {
		return model.CameraConstant{}, false
	}
	return model.CameraConstant{Value: *ev.Stored, Source: model.SourceStored}, true
}

// metadataStrategy derives the constant from the capture's 35mm-equivalent
// focal length. The sensor width is the effective width of a 4:3 frame
// sharing the 135-film diagonal, not the 36 mm film width; phone sensors
// are 4:3 and the equivalence is quoted against the diagonal.
type metadataStrategy struct {
	sensorWidthMM float64
	cropFactor    float64
}

func (s metadataStrategy) Resolve(ev *model.CalibrationEvidence) (model.CameraConstant, bool) {
	meta := ev.Meta
	// Captures that carry only a raw focal length still reach this tier
	// when a device-wide crop factor is configured.
	if meta != nil && meta.FocalLength35mm <= 0 && meta.CropFactor <= 0 && s.cropFactor > 0 {
		m := *meta
		m.CropFactor = s.cropFactor
		meta = &m
	}
	f35 := meta.Focal35()
	if f35 <= 0 || s.sensorWidthMM <= 0 {
		return model.CameraConstant{}, false
	}
	return model.CameraConstant{Value: s.sensorWidthMM / f35, Source: model.SourceMetadata}, true
}

// fovStrategy converts a measured horizontal field of view into a constant.
// With r = tan(hfov/2), the frame spans 2r focal lengths, which is exactly
// the constant's definition.
type fovStrategy struct{}

func (fovStrategy) Resolve(ev *model.CalibrationEvidence) (model.CameraConstant, bool) {
	if ev.FOVRatio == nil || *ev.FOVRatio <= 0 {
		return model.CameraConstant{}, false
	}
	return model.CameraConstant{Value: ConstantFromRatio(*ev.FOVRatio), Source: model.SourceFOVRatio}, true
}

// reverseStrategy reconstructs the constant from a prior measurement of the
// same subject. The prior stored its scale, distance, and longest image
// side; inverting the scale formula recovers the constant that produced it.
type reverseStrategy struct{}

func (reverseStrategy) Resolve(ev *model.CalibrationEvidence) (model.CameraConstant, bool) {
	p := ev.Prior
	if p == nil || p.ScaleMMPx <= 0 || p.DistanceM <= 0 || p.MaxDimPx <= 0 {
		return model.CameraConstant{}, false
	}
	c := p.ScaleMMPx * float64(p.MaxDimPx) / (1000 * p.DistanceM)
	return model.CameraConstant{Value: c, Source: model.SourceReverse}, true
}

// RatioFromHFOV converts a horizontal field of view in degrees to the stored
// half-angle tangent ratio.
func RatioFromHFOV(deg float64) (float64, error) {
	if deg <= 0 || deg >= 180 {
		return 0, fmt.Errorf("%w: got %.2f", ErrBadFOV, deg)
	}
	return math.Tan(deg * math.Pi / 360), nil
}

// ConstantFromRatio maps the half-angle tangent ratio to a camera constant.
func ConstantFromRatio(r float64) float64 {
	return 2 * r
}

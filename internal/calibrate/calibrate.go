// Package calibrate resolves the camera constant for a capture device.
//
// The camera constant is the effective sensor width divided by the focal
// length. It is dimensionless, so it survives digital zoom changes in
// resolution and lets one stored number describe a device across sessions.
// Resolution walks a fixed precedence chain of evidence tiers and always
// produces a usable constant; when every tier declines, a generic wide-angle
// fallback is returned flagged as low confidence.
package calibrate

import (
	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// Strategy is a single evidence tier. Resolve inspects the evidence and
// either yields a constant or declines by returning false. Strategies never
// perform I/O; everything they may consult is gathered up front.
type Strategy interface {
	Resolve(ev *model.CalibrationEvidence) (model.CameraConstant, bool)
}

// Resolver walks the tiers in precedence order: stored value, capture
// metadata, field-of-view ratio, reverse derivation from a prior
// measurement, then the generic fallback.
type Resolver struct {
	strategies []Strategy
	fallback   float64
}

// NewResolver builds the standard chain from the calibration tunables.
func NewResolver(cfg model.CalibrationConfig) *Resolver {
	return &Resolver{
		strategies: []Strategy{
			storedStrategy{},
			metadataStrategy{sensorWidthMM: cfg.SensorWidthMM, cropFactor: cfg.DefaultCropFactor},
			fovStrategy{},
			reverseStrategy{},
		},
		fallback: cfg.FallbackConstant,
	}
}

// Resolve returns the first constant a tier yields. It cannot fail: tier
// exhaustion produces the fallback constant with LowConfidence set, so the
// caller always has something to scale with.
func (r *Resolver) Resolve(ev *model.CalibrationEvidence) model.CameraConstant {
	for _, s := range r.strategies {
		if c, ok := s.Resolve(ev); ok {
			return c
		}
	}
	return model.CameraConstant{
		Value:         r.fallback,
		Source:        model.SourceFallback,
		LowConfidence: true,
	}
}

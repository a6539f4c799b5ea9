// Package inclinometer computes tree height from a baseline distance and
// two sighted tilt angles, independent of photography.
package inclinometer

import (
	"errors"
	"fmt"
	"math"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

var (
	// ErrLowConfidence flags a reading whose composite confidence fell
	// below the acceptance threshold; the operator should re-sight.
	ErrLowConfidence = errors.New("reading confidence below threshold")

	// ErrNonPositiveHeight flags a reading whose top angle does not clear
	// the base angle.
	ErrNonPositiveHeight = errors.New("computed height is not positive")

	// ErrBadDistance reports a non-positive baseline distance.
	ErrBadDistance = errors.New("distance must be positive")
)

// Calculator derives height and confidence from locked angle readings. It is
// stateless beyond its tunables; every attempt stands alone.
type Calculator struct {
	cfg model.InclinometerConfig
}

// NewCalculator builds a calculator, substituting defaults for unset
// tunables so a zero-value config cannot divide by zero.
func NewCalculator(cfg model.InclinometerConfig) *Calculator {
	def := model.DefaultConfig().Inclinometer
	if cfg.MinDistanceM <= 0 {
		cfg.MinDistanceM = def.MinDistanceM
	}
	if cfg.MaxDistanceM <= cfg.MinDistanceM {
		cfg.MaxDistanceM = def.MaxDistanceM
	}
	if cfg.MinSeparationDeg <= 0 {
		cfg.MinSeparationDeg = def.MinSeparationDeg
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	return &Calculator{cfg: cfg}
}

// Compute derives the height for a distance and two locked angles, both
// measured from horizontal with the base angle negative below eye level.
func (c *Calculator) Compute(distanceM, baseAngleDeg, topAngleDeg float64) model.InclinometricReading {
	height := distanceM * (math.Tan(radians(topAngleDeg)) - math.Tan(radians(baseAngleDeg)))
	confidence, _ := c.Confidence(distanceM, baseAngleDeg, topAngleDeg)
	return model.InclinometricReading{
		DistanceM:    distanceM,
		BaseAngleDeg: baseAngleDeg,
		TopAngleDeg:  topAngleDeg,
		HeightM:      height,
		Confidence:   confidence,
	}
}

// Validate flags readings the operator should not accept silently. The
// caller keeps the reading either way; a flagged one prompts a retry.
func (c *Calculator) Validate(r model.InclinometricReading) error {
	if r.DistanceM <= 0 {
		return fmt.Errorf("%w: got %.2f m", ErrBadDistance, r.DistanceM)
	}
	if r.HeightM <= 0 {
		return fmt.Errorf("%w: top %.1f deg does not clear base %.1f deg", ErrNonPositiveHeight, r.TopAngleDeg, r.BaseAngleDeg)
	}
	if r.Confidence < c.cfg.MinConfidence {
		return fmt.Errorf("%w: %.2f below %.2f", ErrLowConfidence, r.Confidence, c.cfg.MinConfidence)
	}
	return nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

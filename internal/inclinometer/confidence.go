package inclinometer

import (
	"fmt"
	"math"
)

// Factor is one component of the composite confidence score.
type Factor struct {
	Name        string
	Value       float64
	Description string
}

// Confidence multiplies the per-factor penalties into one score in [0,1].
// The factors come back too, so an operator can see which condition to fix
// before re-sighting.
func (c *Calculator) Confidence(distanceM, baseAngleDeg, topAngleDeg float64) (float64, []Factor) {
	factors := []Factor{
		c.distanceFactor(distanceM),
		c.topAngleFactor(topAngleDeg),
		c.baseAngleFactor(baseAngleDeg),
		c.separationFactor(baseAngleDeg, topAngleDeg),
	}
	score := 1.0
	for _, f := range factors {
		score *= f.Value
	}
	return clamp01(score), factors
}

// distanceFactor is 1 inside the working band, ramps linearly to zero at
// zero distance on the near side, and decays as hi/d past the far edge,
// strictly decreasing at any range.
func (c *Calculator) distanceFactor(d float64) Factor {
	lo, hi := c.cfg.MinDistanceM, c.cfg.MaxDistanceM
	var v float64
	switch {
	case d <= 0:
		v = 0
	case d < lo:
		v = d / lo
	case d <= hi:
		v = 1
	default:
		v = hi / d
	}
	return Factor{
		Name:        "distance",
		Value:       v,
		Description: fmt.Sprintf("%.1f m against the %.0f-%.0f m working band", d, lo, hi),
	}
}

// topAngleFactor penalizes sightings near horizontal, where the height
// signal vanishes into sensor noise, and past 75 degrees, where the tangent
// amplifies it.
func (c *Calculator) topAngleFactor(deg float64) Factor {
	v := clamp01(math.Min(deg/5, (90-deg)/15))
	return Factor{
		Name:        "top angle",
		Value:       v,
		Description: fmt.Sprintf("%.1f deg from horizontal", deg),
	}
}

// baseAngleFactor penalizes base sightings approaching vertical in either
// direction.
func (c *Calculator) baseAngleFactor(deg float64) Factor {
	v := clamp01((90 - math.Abs(deg)) / 15)
	return Factor{
		Name:        "base angle",
		Value:       v,
		Description: fmt.Sprintf("%.1f deg from horizontal", deg),
	}
}

// separationFactor penalizes locked angles too close together to resolve a
// height difference.
func (c *Calculator) separationFactor(baseDeg, topDeg float64) Factor {
	sep := topDeg - baseDeg
	v := clamp01(sep / c.cfg.MinSeparationDeg)
	return Factor{
		Name:        "separation",
		Value:       v,
		Description: fmt.Sprintf("%.1f deg between locks, %.0f wanted", sep, c.cfg.MinSeparationDeg),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package tolerance propagates input uncertainty into the ± bounds reported
// alongside each metric. Bounds degrade to unavailable, never to zero, when
// a required input is missing.
package tolerance

import (
	"math"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// Estimator combines the proportional distance-measurement error with a
// fixed touch imprecision expressed in each metric's own per-pixel scale.
type Estimator struct {
	cfg model.ToleranceConfig
}

// NewEstimator builds an estimator from the tolerance tunables.
func NewEstimator(cfg model.ToleranceConfig) *Estimator {
	return &Estimator{cfg: cfg}
}

// Estimate computes per-metric bounds for whatever metrics are present.
// Callers re-run it whenever a metric or the scale factor changes; it holds
// no state of its own.
func (e *Estimator) Estimate(m model.Metrics, sf model.ScaleFactor) model.ToleranceEstimate {
	var out model.ToleranceEstimate
	if !sf.Valid() {
		return out
	}
	unitPerPixel := sf.MetersPerPixel()
	if m.HeightM != nil {
		out.HeightM = model.Float(e.absolute(*m.HeightM, unitPerPixel))
	}
	if m.CanopyM != nil {
		out.CanopyM = model.Float(e.absolute(*m.CanopyM, unitPerPixel))
	}
	if m.GirthM != nil {
		out.GirthM = model.Float(e.absolute(*m.GirthM, unitPerPixel))
	}
	out.CO2eKg = e.carbonBound(m, out)
	return out
}

// absolute is the per-metric bound: value times the relative input error,
// plus the touch imprecision converted into the metric's unit.
func (e *Estimator) absolute(value, unitPerPixel float64) float64 {
	return math.Abs(value)*e.cfg.RelativeError + e.cfg.PixelTolerance*unitPerPixel
}

// CarbonRelError propagates relative errors through the allometric power
// law. Biomass scales with (diameter squared times height) raised to the
// exponent, so the diameter term carries twice the weight of the height
// term.
func (e *Estimator) CarbonRelError(relHeight, relDiameter float64) float64 {
	return e.cfg.BiomassExponent * (relHeight + 2*relDiameter)
}

func (e *Estimator) carbonBound(m model.Metrics, t model.ToleranceEstimate) *float64 {
	if m.CO2eKg == nil || m.HeightM == nil || m.GirthM == nil || t.HeightM == nil || t.GirthM == nil {
		return nil
	}
	h, d := *m.HeightM, *m.GirthM
	if h <= 0 || d <= 0 {
		return nil
	}
	rel := e.CarbonRelError(*t.HeightM/h, *t.GirthM/d)
	return model.Float(math.Abs(*m.CO2eKg) * rel)
}

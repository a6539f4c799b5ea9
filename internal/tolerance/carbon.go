package tolerance

import (
	"errors"
	"fmt"
	"math"
)

// ErrBadDimensions reports non-positive height or diameter passed to the
// allometric model.
var ErrBadDimensions = errors.New("height and diameter must be positive")

// CarbonEstimate is the allometric output for one tree.
type CarbonEstimate struct {
	BiomassKg float64
	CarbonKg  float64
	CO2eKg    float64
}

// Carbon applies the allometric power law to height and trunk diameter.
// The allometry is calibrated in mixed units: wood density in g/cm3,
// diameter in centimeters, height in meters, yielding kilograms of dry
// above-ground biomass.
func (e *Estimator) Carbon(heightM, trunkDiameterM float64) (CarbonEstimate, error) {
	if heightM <= 0 || trunkDiameterM <= 0 {
		return CarbonEstimate{}, fmt.Errorf("%w: height %.3f m, diameter %.3f m", ErrBadDimensions, heightM, trunkDiameterM)
	}
	density := e.cfg.WoodDensityKgM3 / 1000
	diameterCm := trunkDiameterM * 100
	biomass := e.cfg.BiomassCoefficient * math.Pow(density*diameterCm*diameterCm*heightM, e.cfg.BiomassExponent)
	carbon := biomass * e.cfg.CarbonFraction
	return CarbonEstimate{
		BiomassKg: biomass,
		CarbonKg:  carbon,
		CO2eKg:    carbon * e.cfg.CO2Ratio,
	}, nil
}

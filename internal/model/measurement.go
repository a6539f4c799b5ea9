package model

import "time"

// Metrics are the physical tree dimensions a measurement produces. Pointer
// fields distinguish "not yet available" (nil) from a genuine zero.
type Metrics struct {
	HeightM   *float64 `json:"height_m,omitempty"`    // tree height, meters
	CanopyM   *float64 `json:"canopy_m,omitempty"`    // canopy spread, meters
	GirthM    *float64 `json:"girth_m,omitempty"`     // trunk diameter, meters
	CarbonKg  *float64 `json:"carbon_kg,omitempty"`   // sequestered carbon, kg
	CO2eKg    *float64 `json:"co2e_kg,omitempty"`     // CO2 equivalent, kg
	BiomassKg *float64 `json:"biomass_kg,omitempty"`  // above-ground biomass, kg
}

// ToleranceEstimate carries the ± bound for each reported metric. A nil bound
// means the tolerance is unavailable because a required input is missing; it
// is never reported as zero in that case.
type ToleranceEstimate struct {
	HeightM *float64 `json:"height_m,omitempty"`
	CanopyM *float64 `json:"canopy_m,omitempty"`
	GirthM  *float64 `json:"girth_m,omitempty"`
	CO2eKg  *float64 `json:"co2e_kg,omitempty"`
}

// InclinometricReading is one completed two-angle height attempt. It exists
// only after both explicit lock actions; a retry discards it entirely.
type InclinometricReading struct {
	DistanceM    float64 `json:"distance_m"`
	BaseAngleDeg float64 `json:"base_angle_deg"` // negative when the base sits below eye level
	TopAngleDeg  float64 `json:"top_angle_deg"`
	HeightM      float64 `json:"height_m"`
	Confidence   float64 `json:"confidence"` // composite score in [0,1]
	JitterDeg    float64 `json:"jitter_deg"` // worst per-lock sample spread, informational
}

// Measurement is the persisted record of a completed session. Besides the
// reported metrics it keeps the scale factor, distance and image dimension so
// a later session on the same subject can reverse-derive a camera constant.
type Measurement struct {
	ID        string            `json:"id"`
	SubjectID string            `json:"subject_id"`
	HeightM   float64           `json:"height_m"`
	CanopyM   float64           `json:"canopy_m"`
	GirthM    float64           `json:"girth_m"`
	CO2eKg    float64           `json:"co2e_kg"`
	ScaleMMPx float64           `json:"scale_mm_px"`
	DistanceM float64           `json:"distance_m"`
	MaxDimPx  int               `json:"max_dim_px"`
	Source    CalibrationSource `json:"calibration_source"`
	CreatedAt time.Time         `json:"created_at"`
}

// PriorEvidence converts the record into the reverse-derivation evidence
// pair. Records missing any of the three values reverse derivation divides
// or multiplies by yield nil rather than a half-usable pair.
func (m *Measurement) PriorEvidence() *PriorMeasurement {
	if m == nil || m.ScaleMMPx <= 0 || m.DistanceM <= 0 || m.MaxDimPx <= 0 {
		return nil
	}
	return &PriorMeasurement{
		SubjectID: m.SubjectID,
		ScaleMMPx: m.ScaleMMPx,
		DistanceM: m.DistanceM,
		MaxDimPx:  m.MaxDimPx,
	}
}

// Float returns a pointer to v, for filling optional metric fields.
func Float(v float64) *float64 { return &v }

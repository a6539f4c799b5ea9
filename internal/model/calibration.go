package model

// CalibrationSource identifies which evidence tier produced a camera constant.
type CalibrationSource string

const (
	SourceStored   CalibrationSource = "stored"    // persisted per-device constant
	SourceMetadata CalibrationSource = "metadata"  // derived from capture metadata
	SourceFOVRatio CalibrationSource = "fov_ratio" // captured field-of-view ratio
	SourceReverse  CalibrationSource = "reverse"   // reverse-derived from a prior measurement
	SourceFallback CalibrationSource = "fallback"  // generic constant, low confidence
)

func (s CalibrationSource) String() string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

// CaptureMeta holds the optional photographic metadata extracted from a capture.
// Every field may legitimately be absent; absence is expected, not an error.
type CaptureMeta struct {
	FocalLength35mm float64 `json:"focal_length_35mm,omitempty"` // 35mm-equivalent focal length, mm
	FocalLength     float64 `json:"focal_length,omitempty"`      // raw focal length, mm
	CropFactor      float64 `json:"crop_factor,omitempty"`       // sensor crop factor relative to 35mm film
}

// Focal35 returns the 35mm-equivalent focal length, deriving it from the raw
// focal length and crop factor when the equivalent field itself is missing.
// Returns 0 when the metadata cannot yield an equivalent focal length.
func (m *CaptureMeta) Focal35() float64 {
	if m == nil {
		return 0
	}
	if m.FocalLength35mm > 0 {
		return m.FocalLength35mm
	}
	if m.FocalLength > 0 && m.CropFactor > 0 {
		return m.FocalLength * m.CropFactor
	}
	return 0
}

// PriorMeasurement is the reverse-derivable evidence pair from an earlier
// measurement of the same subject: the scale factor it used, the distance it
// was taken at, and the larger image dimension the scale was normalized by.
type PriorMeasurement struct {
	SubjectID string  `json:"subject_id"`
	ScaleMMPx float64 `json:"scale_mm_px"`
	DistanceM float64 `json:"distance_m"`
	MaxDimPx  int     `json:"max_dim_px"`
}

// CalibrationEvidence is everything a single resolution attempt may draw on.
// It is assembled once per session and treated as immutable; the resolver
// inspects it tier by tier and never mutates it.
type CalibrationEvidence struct {
	// Stored is the persisted per-device constant, if one exists under the
	// current key version.
	Stored *float64

	// Meta is capture metadata read from the photograph, if any.
	Meta *CaptureMeta

	// FOVRatio is a previously captured tan(half horizontal FOV), from the
	// manual calibration flow or a live camera-stream probe.
	FOVRatio *float64

	// Prior is a stored (scale factor, distance, max dimension) triple from an
	// earlier measurement. Only consulted when its subject matches SubjectID.
	Prior *PriorMeasurement

	// SubjectID identifies the photographed subject of the current session.
	SubjectID string

	// Width and Height are the capture's pixel dimensions.
	Width  int
	Height int
}

// CameraConstant is the resolved dimensionless camera-geometry scalar
// (effective sensor width over focal length) together with its provenance.
// It is produced once per session and never silently recomputed.
type CameraConstant struct {
	Value         float64           `json:"value"`
	Source        CalibrationSource `json:"source"`
	LowConfidence bool              `json:"low_confidence"`
}

// Valid reports whether the constant is usable for scale derivation.
func (c CameraConstant) Valid() bool {
	return c.Value > 0
}

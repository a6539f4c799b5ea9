package calibrate

import (
	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// Store is the slice of persistence the evidence gatherer consults.
type Store interface {
	// Constant returns the stored per-device camera constant, with ok false
	// when none has been persisted.
	Constant(deviceID string) (float64, bool, error)

	// FOVRatio returns the stored half-angle tangent ratio for the device,
	// with ok false when none has been persisted.
	FOVRatio(deviceID string) (float64, bool, error)

	// LatestMeasurement returns the most recent completed measurement of
	// the subject, or an error when there is none.
	LatestMeasurement(subjectID string) (*model.Measurement, error)
}

// GatherEvidence collects everything the tiers may consult into one
// immutable snapshot. Store read failures degrade to absent evidence rather
// than propagating: resolution has to work offline and with a cold store,
// and the fallback tier covers total absence.
func GatherEvidence(st Store, deviceID, subjectID string, meta model.CaptureMeta, width, height int) *model.CalibrationEvidence {
	ev := &model.CalibrationEvidence{
		SubjectID: subjectID,
		Width:     width,
		Height:    height,
	}
	if meta != (model.CaptureMeta{}) {
		m := meta
		ev.Meta = &m
	}
	if st == nil {
		return ev
	}
	if v, ok, err := st.Constant(deviceID); err == nil && ok && v > 0 {
		ev.Stored = &v
	}
	if v, ok, err := st.FOVRatio(deviceID); err == nil && ok && v > 0 {
		ev.FOVRatio = &v
	}
	if subjectID != "" {
		if m, err := st.LatestMeasurement(subjectID); err == nil && m != nil {
			ev.Prior = m.PriorEvidence()
		}
	}
	return ev
}

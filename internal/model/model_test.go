package model

import (
	"math"
	"testing"
)

func TestCaptureMetaFocal35(t *testing.T) {
	tests := []struct {
		name string
		meta *CaptureMeta
		want float64
	}{
		{
			name: "explicit 35mm equivalent wins",
			meta: &CaptureMeta{FocalLength35mm: 26, FocalLength: 5.4, CropFactor: 6.0},
			want: 26,
		},
		{
			name: "derived from raw focal and crop factor",
			meta: &CaptureMeta{FocalLength: 5.4, CropFactor: 5.0},
			want: 27,
		},
		{
			name: "raw focal without crop factor is unusable",
			meta: &CaptureMeta{FocalLength: 5.4},
			want: 0,
		},
		{
			name: "crop factor without raw focal is unusable",
			meta: &CaptureMeta{CropFactor: 5.0},
			want: 0,
		},
		{
			name: "empty metadata",
			meta: &CaptureMeta{},
			want: 0,
		},
		{
			name: "nil metadata",
			meta: nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.meta.Focal35()
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Focal35() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCameraConstantValid(t *testing.T) {
	tests := []struct {
		name string
		c    CameraConstant
		want bool
	}{
		{"positive value", CameraConstant{Value: 1.33, Source: SourceFallback}, true},
		{"zero value", CameraConstant{Value: 0, Source: SourceMetadata}, false},
		{"negative value", CameraConstant{Value: -0.5, Source: SourceStored}, false},
		{"NaN value", CameraConstant{Value: math.NaN(), Source: SourceStored}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalibrationSourceString(t *testing.T) {
	tests := []struct {
		source CalibrationSource
		want   string
	}{
		{SourceStored, "stored"},
		{SourceMetadata, "metadata"},
		{SourceFOVRatio, "fov_ratio"},
		{SourceReverse, "reverse"},
		{SourceFallback, "fallback"},
		{CalibrationSource(""), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.source.String(); got != tt.want {
			t.Errorf("CalibrationSource(%q).String() = %q, want %q", string(tt.source), got, tt.want)
		}
	}
}

func TestScaleFactorConversions(t *testing.T) {
	sf := ScaleFactor{MMPerPixel: 2.5}

	if !sf.Valid() {
		t.Fatal("expected scale factor to be valid")
	}
	if got := sf.PixelsToMillimeters(100); got != 250 {
		t.Errorf("PixelsToMillimeters(100) = %v, want 250", got)
	}
	if got := sf.PixelsToMeters(1000); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("PixelsToMeters(1000) = %v, want 2.5", got)
	}
	if got := sf.MetersPerPixel(); math.Abs(got-0.0025) > 1e-12 {
		t.Errorf("MetersPerPixel() = %v, want 0.0025", got)
	}

	var zero ScaleFactor
	if zero.Valid() {
		t.Error("zero scale factor should be invalid")
	}
}

func TestPointSetByCategory(t *testing.T) {
	var ps PointSet
	ps.Add(TaggedPoint{Category: PointHeight, Point: Point{X: 10, Y: 500}})
	ps.Add(TaggedPoint{Category: PointHeight, Point: Point{X: 12, Y: 40}})
	ps.Add(TaggedPoint{Category: PointGirth, Point: Point{X: 100, Y: 300}})
	ps.Add(TaggedPoint{Category: PointGirth, Point: Point{X: 150, Y: 300}})
	ps.Add(TaggedPoint{Category: PointCanopy, Point: Point{X: 5, Y: 200}})

	if got := ps.Count(PointHeight); got != 2 {
		t.Errorf("Count(PointHeight) = %d, want 2", got)
	}
	if got := ps.Count(PointGirth); got != 2 {
		t.Errorf("Count(PointGirth) = %d, want 2", got)
	}
	if got := ps.Count(PointTrunk); got != 0 {
		t.Errorf("Count(PointTrunk) = %d, want 0", got)
	}
	if got := ps.Len(); got != 5 {
		t.Errorf("Len() = %d, want 5", got)
	}

	girth := ps.ByCategory(PointGirth)
	if len(girth) != 2 || girth[0].X != 100 || girth[1].X != 150 {
		t.Errorf("ByCategory(PointGirth) = %v, want the two girth points in order", girth)
	}
}

// The read-only accessors must be callable on a set handed out by value,
// without taking its address first.
func TestPointSetReadsOnValueCopy(t *testing.T) {
	build := func() PointSet {
		var ps PointSet
		ps.Add(TaggedPoint{Category: PointTrunk, Point: Point{X: 1, Y: 2}})
		ps.Add(TaggedPoint{Category: PointCanopy, Point: Point{X: 3, Y: 4}})
		return ps
	}
	if got := build().Len(); got != 2 {
		t.Errorf("Len on value copy = %d, want 2", got)
	}
	if got := build().Count(PointCanopy); got != 1 {
		t.Errorf("Count on value copy = %d, want 1", got)
	}
	if pts := build().ByCategory(PointTrunk); len(pts) != 1 || pts[0].X != 1 {
		t.Errorf("ByCategory on value copy = %v, want the trunk point", pts)
	}
}

func TestPointDistanceTo(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 3, Y: 4}
	if got := a.DistanceTo(b); math.Abs(got-5) > 1e-9 {
		t.Errorf("DistanceTo = %v, want 5", got)
	}
}

func TestMeasurementPriorEvidence(t *testing.T) {
	m := &Measurement{
		ID:        "m-1",
		SubjectID: "oak-42",
		ScaleMMPx: 3.2,
		DistanceM: 8,
		MaxDimPx:  4000,
	}
	prior := m.PriorEvidence()
	if prior == nil {
		t.Fatal("expected prior evidence")
	}
	if prior.SubjectID != "oak-42" || prior.ScaleMMPx != 3.2 || prior.DistanceM != 8 || prior.MaxDimPx != 4000 {
		t.Errorf("PriorEvidence() = %+v, want fields copied from measurement", prior)
	}

	incomplete := &Measurement{ID: "m-2", SubjectID: "oak-42", DistanceM: 8}
	if got := incomplete.PriorEvidence(); got != nil {
		t.Errorf("PriorEvidence() on incomplete measurement = %+v, want nil", got)
	}
}

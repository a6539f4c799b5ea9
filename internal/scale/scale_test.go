package scale

import (
	"errors"
	"math"
	"testing"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

func TestCompute(t *testing.T) {
	c := model.CameraConstant{Value: 1.33, Source: model.SourceFallback}

	tests := []struct {
		name          string
		distance      float64
		width, height int
		want          float64
	}{
		{"portrait capture", 10, 3000, 4000, 10 * 1000 * 1.33 / 4000},
		{"landscape capture", 10, 4000, 3000, 10 * 1000 * 1.33 / 4000},
		{"close capture", 2.5, 1080, 1920, 2.5 * 1000 * 1.33 / 1920},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sf, err := Compute(tt.distance, c, tt.width, tt.height)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if math.Abs(sf.MMPerPixel-tt.want) > 1e-9 {
				t.Errorf("MMPerPixel = %v, want %v", sf.MMPerPixel, tt.want)
			}
		})
	}
}

// The factor must grow with distance and constant and shrink as the sensor
// packs more pixels into the same field of view.
func TestComputeMonotonic(t *testing.T) {
	base := func(distance, constant float64, maxDim int) float64 {
		sf, err := Compute(distance, model.CameraConstant{Value: constant, Source: model.SourceStored}, maxDim, maxDim/2)
		if err != nil {
			t.Fatal(err)
		}
		if sf.MMPerPixel <= 0 {
			t.Fatalf("MMPerPixel = %v, want positive", sf.MMPerPixel)
		}
		return sf.MMPerPixel
	}

	ref := base(10, 1.33, 4000)
	if farther := base(15, 1.33, 4000); farther <= ref {
		t.Errorf("farther capture scale %v should exceed %v", farther, ref)
	}
	if wider := base(10, 1.5, 4000); wider <= ref {
		t.Errorf("wider-lens scale %v should exceed %v", wider, ref)
	}
	if denser := base(10, 1.33, 6000); denser >= ref {
		t.Errorf("denser-sensor scale %v should fall below %v", denser, ref)
	}
}

func TestComputeRejectsBadInputs(t *testing.T) {
	valid := model.CameraConstant{Value: 1.33, Source: model.SourceFallback}

	tests := []struct {
		name          string
		distance      float64
		c             model.CameraConstant
		width, height int
		wantErr       error
	}{
		{"zero distance", 0, valid, 100, 100, ErrBadDistance},
		{"negative distance", -4, valid, 100, 100, ErrBadDistance},
		{"invalid constant", 5, model.CameraConstant{}, 100, 100, ErrBadConstant},
		{"zero dimensions", 5, valid, 0, 0, ErrBadImage},
		{"negative dimensions", 5, valid, -10, -20, ErrBadImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compute(tt.distance, tt.c, tt.width, tt.height); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

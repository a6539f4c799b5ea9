package inclinometer

import (
	"errors"
	"math"
	"testing"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

func testCalculator() *Calculator {
	return NewCalculator(model.DefaultConfig().Inclinometer)
}

func TestComputeCanonicalSighting(t *testing.T) {
	c := testCalculator()
	r := c.Compute(10, 0, 45)

	if math.Abs(r.HeightM-10.0) > 1e-9 {
		t.Errorf("height = %v, want 10.0", r.HeightM)
	}
	if math.Abs(r.Confidence-1.0) > 1e-9 {
		t.Errorf("confidence = %v, want 1.0", r.Confidence)
	}
	if err := c.Validate(r); err != nil {
		t.Errorf("canonical sighting flagged: %v", err)
	}
}

func TestComputeHeights(t *testing.T) {
	c := testCalculator()
	tests := []struct {
		name             string
		distance         float64
		base, top        float64
		want             float64
	}{
		{"equal angles collapse to zero", 10, 30, 30, 0},
		{"base below eye level adds height", 10, -10, 30, 10 * (math.Tan(30*math.Pi/180) + math.Tan(10*math.Pi/180))},
		{"steep short sighting", 6, 5, 60, 6 * (math.Tan(60*math.Pi/180) - math.Tan(5*math.Pi/180))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.Compute(tt.distance, tt.base, tt.top)
			if math.Abs(r.HeightM-tt.want) > 1e-9 {
				t.Errorf("height = %v, want %v", r.HeightM, tt.want)
			}
		})
	}
}

// Confidence must strictly decrease as distance leaves the working band in
// either direction, and stay flat inside it.
func TestConfidenceDistanceMonotonic(t *testing.T) {
	c := testCalculator()
	conf := func(d float64) float64 {
		v, _ := c.Confidence(d, 0, 45)
		return v
	}

	if !(conf(3) < conf(4) && conf(4) < conf(5)) {
		t.Errorf("near side not strictly increasing toward band: %v %v %v", conf(3), conf(4), conf(5))
	}
	if conf(5) != 1 || conf(12) != 1 || conf(20) != 1 {
		t.Errorf("inside band should be 1: %v %v %v", conf(5), conf(12), conf(20))
	}
	if !(conf(25) < conf(20) && conf(30) < conf(25) && conf(38) < conf(30)) {
		t.Errorf("far side not strictly decreasing: %v %v %v %v", conf(20), conf(25), conf(30), conf(38))
	}
	// The far-side penalty keeps biting at extreme range, never flattening.
	if !(conf(45) < conf(40) && conf(80) < conf(45) && conf(80) > 0) {
		t.Errorf("extreme range not strictly decreasing and positive: %v %v %v", conf(40), conf(45), conf(80))
	}
}

func TestConfidenceFactors(t *testing.T) {
	c := testCalculator()
	tests := []struct {
		name      string
		distance  float64
		base, top float64
		want      float64
	}{
		{"steep top angle", 10, 0, 80, (90 - 80) / 15.0},
		{"near-vertical base", 10, -85, -60, (90 - 85) / 15.0 * 1}, // separation 25 is fine, top -60 floors at 0
		{"narrow separation", 10, 40, 45, 0.5},
		{"shallow top angle", 10, 0, 3, (3 / 5.0) * (3 / 10.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, factors := c.Confidence(tt.distance, tt.base, tt.top)
			if tt.name == "near-vertical base" {
				// The negative top angle zeroes the whole product.
				if got != 0 {
					t.Errorf("confidence = %v, want 0", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("confidence = %v, want %v (factors %+v)", got, tt.want, factors)
			}
		})
	}
}

func TestConfidenceStaysInUnitInterval(t *testing.T) {
	c := testCalculator()
	inputs := [][3]float64{
		{10, 0, 120}, {100, 0, 45}, {0.5, -95, 95}, {10, 90, 91}, {-4, 0, 45},
	}
	for _, in := range inputs {
		got, _ := c.Confidence(in[0], in[1], in[2])
		if got < 0 || got > 1 || math.IsNaN(got) {
			t.Errorf("Confidence(%v) = %v, want within [0,1]", in, got)
		}
	}
}

func TestValidate(t *testing.T) {
	c := testCalculator()

	t.Run("flat reading is flagged", func(t *testing.T) {
		r := c.Compute(10, 30, 30)
		if err := c.Validate(r); !errors.Is(err, ErrNonPositiveHeight) {
			t.Errorf("error = %v, want ErrNonPositiveHeight", err)
		}
	})

	t.Run("inverted reading is flagged", func(t *testing.T) {
		r := c.Compute(10, 45, 20)
		if err := c.Validate(r); !errors.Is(err, ErrNonPositiveHeight) {
			t.Errorf("error = %v, want ErrNonPositiveHeight", err)
		}
	})

	t.Run("low confidence is flagged", func(t *testing.T) {
		// Far outside the band and steep: 2/3 * 2/3 confidence.
		r := c.Compute(30, 0, 80)
		if err := c.Validate(r); !errors.Is(err, ErrLowConfidence) {
			t.Errorf("error = %v, want ErrLowConfidence (confidence %v)", err, r.Confidence)
		}
	})

	t.Run("bad distance is flagged", func(t *testing.T) {
		r := c.Compute(0, 0, 45)
		if err := c.Validate(r); !errors.Is(err, ErrBadDistance) {
			t.Errorf("error = %v, want ErrBadDistance", err)
		}
	})
}

func TestNewCalculatorNormalizesZeroConfig(t *testing.T) {
	c := NewCalculator(model.InclinometerConfig{})
	got, _ := c.Confidence(10, 0, 45)
	if math.IsNaN(got) || got != 1 {
		t.Errorf("confidence with defaulted config = %v, want 1", got)
	}
}

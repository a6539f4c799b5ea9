package model

import "time"

// Config is the full engine configuration. Every empirical constant the
// measurement math relies on lives here as a tunable rather than a hard-coded
// truth; DefaultConfig carries the field-proven values.
type Config struct {
	DeviceID     string             `yaml:"device_id" mapstructure:"device_id"`
	Calibration  CalibrationConfig  `yaml:"calibration" mapstructure:"calibration"`
	Tolerance    ToleranceConfig    `yaml:"tolerance" mapstructure:"tolerance"`
	Inclinometer InclinometerConfig `yaml:"inclinometer" mapstructure:"inclinometer"`
	Protocol     ProtocolConfig     `yaml:"protocol" mapstructure:"protocol"`
	Vision       VisionConfig       `yaml:"vision" mapstructure:"vision"`
	Sensor       SensorConfig       `yaml:"sensor" mapstructure:"sensor"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// CalibrationConfig tunes camera-constant resolution.
type CalibrationConfig struct {
	// SensorWidthMM is the effective sensor width used to convert a
	// 35mm-equivalent focal length into a camera constant. 34.616 mm is the
	// width of a 4:3 frame sharing the 135-film diagonal, which models
	// smartphone sensors better than the 36 mm film width does.
	SensorWidthMM float64 `yaml:"sensor_width_mm" mapstructure:"sensor_width_mm"`

	// FallbackConstant is the generic last-resort camera constant,
	// equivalent to assuming a ~26 mm wide-angle lens.
	FallbackConstant float64 `yaml:"fallback_constant" mapstructure:"fallback_constant"`

	// DefaultCropFactor fills in for captures that report a raw focal
	// length but no 35mm equivalent. Zero means unknown, which skips the
	// metadata tier rather than guessing.
	DefaultCropFactor float64 `yaml:"default_crop_factor" mapstructure:"default_crop_factor"`

	// ProbeTimeout bounds the best-effort live camera-stream probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

// ToleranceConfig tunes uncertainty propagation and the allometric carbon
// model the carbon bound propagates through.
type ToleranceConfig struct {
	// RelativeError is the proportional error assumed on the distance
	// measurement (and thus on every distance-derived metric).
	RelativeError float64 `yaml:"relative_error" mapstructure:"relative_error"`

	// PixelTolerance is the fixed touch/selection imprecision in pixels.
	PixelTolerance float64 `yaml:"pixel_tolerance" mapstructure:"pixel_tolerance"`

	// BiomassCoefficient and BiomassExponent parameterize the allometric
	// power law AGB = a * (density * diameter^2 * height)^k.
	BiomassCoefficient float64 `yaml:"biomass_coefficient" mapstructure:"biomass_coefficient"`
	BiomassExponent    float64 `yaml:"biomass_exponent" mapstructure:"biomass_exponent"`

	// WoodDensityKgM3 is the generic wood density used when no species
	// information is available.
	WoodDensityKgM3 float64 `yaml:"wood_density_kg_m3" mapstructure:"wood_density_kg_m3"`

	// CarbonFraction is the carbon share of dry biomass.
	CarbonFraction float64 `yaml:"carbon_fraction" mapstructure:"carbon_fraction"`

	// CO2Ratio converts carbon mass to CO2 equivalent (44/12).
	CO2Ratio float64 `yaml:"co2_ratio" mapstructure:"co2_ratio"`
}

// InclinometerConfig tunes the two-angle height path.
type InclinometerConfig struct {
	// MinDistanceM and MaxDistanceM bound the full-confidence distance band.
	MinDistanceM float64 `yaml:"min_distance_m" mapstructure:"min_distance_m"`
	MaxDistanceM float64 `yaml:"max_distance_m" mapstructure:"max_distance_m"`

	// MinSeparationDeg is the angular separation below which confidence
	// ramps toward zero.
	MinSeparationDeg float64 `yaml:"min_separation_deg" mapstructure:"min_separation_deg"`

	// MinConfidence is the acceptance threshold; readings below it are
	// flagged for retry.
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// ProtocolConfig tunes point collection.
type ProtocolConfig struct {
	// SnapBandFraction is the girth magnetic-snap band as a fraction of
	// image height around the suggested guide row.
	SnapBandFraction float64 `yaml:"snap_band_fraction" mapstructure:"snap_band_fraction"`

	// MinGirthPairs is the minimum number of girth pairs before the manual
	// protocol can confirm.
	MinGirthPairs int `yaml:"min_girth_pairs" mapstructure:"min_girth_pairs"`
}

// VisionConfig configures the remote segmentation service client.
type VisionConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout must accommodate the service's tens-of-seconds latency.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	MaxBodyBytes      int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// HTTPProxy and HTTPSProxy override the environment proxy settings for
	// field networks that front the service with a local proxy.
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
}

// SensorConfig configures the orientation stream.
type SensorConfig struct {
	// SourceURL is the companion device's websocket angle feed.
	SourceURL string `yaml:"source_url" mapstructure:"source_url"`

	// ProbeURL is the companion device's HTTP endpoint for the one-shot
	// camera intrinsics probe.
	ProbeURL string `yaml:"probe_url" mapstructure:"probe_url"`

	// SmoothingAlpha is the exponential moving average weight for new
	// samples; higher tracks faster, lower smooths harder.
	SmoothingAlpha float64 `yaml:"smoothing_alpha" mapstructure:"smoothing_alpha"`

	// JitterWindow is how many recent samples the jitter estimate spans.
	JitterWindow int `yaml:"jitter_window" mapstructure:"jitter_window"`

	// MaxUpdateHz caps how often the smoothed value is refreshed; samples
	// arriving faster are dropped, not queued.
	MaxUpdateHz float64 `yaml:"max_update_hz" mapstructure:"max_update_hz"`
}

// StoreConfig configures the device-scoped persistent store.
type StoreConfig struct {
	// Dir is the store directory; empty means <user config dir>/dendro.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// MemoryTTL bounds the in-memory layer's entry lifetime.
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
}

// OutputConfig controls CLI output behavior.
type OutputConfig struct {
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
	Format   string `yaml:"format" mapstructure:"format"` // "yaml" or "json"
	Annotate bool   `yaml:"annotate" mapstructure:"annotate"`
}

// DefaultConfig returns the engine defaults. The calibration and tolerance
// constants match the values the measurement formulas were tuned with.
func DefaultConfig() *Config {
	return &Config{
		DeviceID: "",
		Calibration: CalibrationConfig{
			SensorWidthMM:    34.616,
			FallbackConstant: 1.33,
			ProbeTimeout:     3 * time.Second,
		},
		Tolerance: ToleranceConfig{
			RelativeError:      0.01,
			PixelTolerance:     5,
			BiomassCoefficient: 0.0673,
			BiomassExponent:    0.976,
			WoodDensityKgM3:    600,
			CarbonFraction:     0.47,
			CO2Ratio:           44.0 / 12.0,
		},
		Inclinometer: InclinometerConfig{
			MinDistanceM:     5,
			MaxDistanceM:     20,
			MinSeparationDeg: 10,
			MinConfidence:    0.5,
		},
		Protocol: ProtocolConfig{
			SnapBandFraction: 0.05,
			MinGirthPairs:    1,
		},
		Vision: VisionConfig{
			BaseURL:           "http://localhost:8900",
			Timeout:           90 * time.Second,
			MaxBodyBytes:      8_000_000,
			RequestsPerSecond: 0.5,
		},
		Sensor: SensorConfig{
			SourceURL:      "ws://localhost:8765/orientation",
			ProbeURL:       "http://localhost:8765",
			SmoothingAlpha: 0.25,
			JitterWindow:   16,
			MaxUpdateHz:    30,
		},
		Store: StoreConfig{
			Dir:       "",
			MemoryTTL: 15 * time.Minute,
		},
		Output: OutputConfig{
			Verbose: false,
			Format:  "yaml",
		},
	}
}

package model

import "time"

// Report is the operator-facing summary of one completed session. It is
// rendered as YAML or JSON by the CLI; nil metric and tolerance fields mean
// "unavailable" and are omitted rather than shown as zero.
type Report struct {
	Subject    string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	Photo      string    `json:"photo,omitempty" yaml:"photo,omitempty"`
	Protocol   string    `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	MeasuredAt time.Time `json:"measured_at" yaml:"measured_at"`

	DistanceM   float64        `json:"distance_m" yaml:"distance_m"`
	Calibration CameraConstant `json:"calibration" yaml:"calibration"`
	ScaleMMPx   float64        `json:"scale_mm_px,omitempty" yaml:"scale_mm_px,omitempty"`

	Metrics    Metrics           `json:"metrics" yaml:"metrics"`
	Tolerances ToleranceEstimate `json:"tolerances" yaml:"tolerances"`

	Inclinometric *InclinometricReading `json:"inclinometric,omitempty" yaml:"inclinometric,omitempty"`

	OverlayPath string   `json:"overlay_path,omitempty" yaml:"overlay_path,omitempty"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

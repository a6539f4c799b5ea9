package model

import "math"

// PointCategory tags a collected reference point with the feature it marks.
type PointCategory string

const (
	PointTrunk  PointCategory = "trunk"  // assisted protocol: trunk anchor
	PointHeight PointCategory = "height" // manual protocol: base and crown extremes
	PointCanopy PointCategory = "canopy" // both protocols: canopy edges
	PointGirth  PointCategory = "girth"  // manual protocol: paired trunk edges
)

// Point is an image-space coordinate in pixels. The origin is the top-left
// corner of the capture, matching what touch and click events report.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean pixel distance to another point.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// TaggedPoint is a point together with its feature category.
type TaggedPoint struct {
	Category PointCategory `json:"category"`
	Point
}

// PointSet is the category-tagged ordered list of reference points a protocol
// assembles for the vision service. Order is significant: points appear in the
// order the protocol collected them.
type PointSet struct {
	Points []TaggedPoint `json:"points"`
}

// Add appends a tagged point, preserving collection order.
func (s *PointSet) Add(tp TaggedPoint) {
	s.Points = append(s.Points, tp)
}

// ByCategory returns the points of one category in collection order.
func (s PointSet) ByCategory(cat PointCategory) []Point {
	var out []Point
	for _, tp := range s.Points {
		if tp.Category == cat {
			out = append(out, tp.Point)
		}
	}
	return out
}

// Count returns how many points carry the given category.
func (s PointSet) Count(cat PointCategory) int {
	n := 0
	for _, tp := range s.Points {
		if tp.Category == cat {
			n++
		}
	}
	return n
}

// Len returns the total number of points in the set.
func (s PointSet) Len() int {
	return len(s.Points)
}

// ScaleFactor converts image pixels to physical size at the photographed
// distance. It is derived once per session and must be treated as immutable:
// any change to distance or calibration invalidates it and requires a new
// session.
type ScaleFactor struct {
	MMPerPixel float64 `json:"mm_per_pixel"`
}

// Valid reports whether the scale factor is usable for conversion.
func (s ScaleFactor) Valid() bool {
	return s.MMPerPixel > 0
}

// PixelsToMillimeters converts a pixel span to millimeters.
func (s ScaleFactor) PixelsToMillimeters(px float64) float64 {
	return px * s.MMPerPixel
}

// PixelsToMeters converts a pixel span to meters.
func (s ScaleFactor) PixelsToMeters(px float64) float64 {
	return px * s.MMPerPixel / 1000.0
}

// MetersPerPixel returns the physical size of one pixel in meters.
func (s ScaleFactor) MetersPerPixel() float64 {
	return s.MMPerPixel / 1000.0
}

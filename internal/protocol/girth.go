package protocol

import (
	"math"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// GirthPair marks opposite trunk edges at one image row.
type GirthPair struct {
	A, B model.TaggedPoint
}

// WidthPx is the pair's horizontal pixel extent.
func (p GirthPair) WidthPx() float64 {
	return math.Abs(p.B.X - p.A.X)
}

// TotalWidth sums the horizontal extents of all pairs.
func TotalWidth(pairs []GirthPair) float64 {
	var sum float64
	for _, p := range pairs {
		sum += p.WidthPx()
	}
	return sum
}

// FoldGirth reduces any number of girth pairs to the single pair downstream
// diameter math consumes. One pair passes through unchanged. With multiple
// stems the pair widths are summed and re-expressed as one synthetic pair on
// the first pair's row, anchored at its left edge, so a multi-stem trunk
// reads as one cumulative diameter.
func FoldGirth(pairs []GirthPair) (GirthPair, bool) {
	switch len(pairs) {
	case 0:
		return GirthPair{}, false
	case 1:
		return pairs[0], true
	}
	first := pairs[0]
	left := math.Min(first.A.X, first.B.X)
	row := first.A.Y
	width := TotalWidth(pairs)
	return GirthPair{
		A: model.TaggedPoint{Category: model.PointGirth, Point: model.Point{X: left, Y: row}},
		B: model.TaggedPoint{Category: model.PointGirth, Point: model.Point{X: left + width, Y: row}},
	}, true
}

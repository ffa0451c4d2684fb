package cveval

import "math"

// areaEpsilon is added to both side lengths of a non-degenerate rectangle.
const areaEpsilon = 1e-5

// Rect is an axis-aligned rectangle in pixel or normalized coordinates.
// Top is the smaller y coordinate.
type Rect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Area returns the widened area of r, or 0 if r has a non-positive width or height.
func (r Rect) Area() float64 {
	w := r.Right - r.Left
	h := r.Bottom - r.Top
	if w <= 0 || h <= 0 {
		return 0
	}
	return (w + areaEpsilon) * (h + areaEpsilon)
}

// Intersect returns the overlap of r and other. The result may be degenerate.
func (r Rect) Intersect(other Rect) Rect {
	return Rect{
		Left:   max(r.Left, other.Left),
		Top:    max(r.Top, other.Top),
		Right:  min(r.Right, other.Right),
		Bottom: min(r.Bottom, other.Bottom),
	}
}

// IOU returns the intersection over union of a and b.
// It is 0 when neither rectangle has a positive area, or when the areas
// overflow float64 and the ratio is undefined.
func IOU(a, b Rect) float64 {
	inter := a.Intersect(b).Area()
	union := a.Area() + b.Area() - inter
	if union <= 0 || math.IsInf(inter, 0) || math.IsNaN(union) {
		return 0
	}
	iou := inter / union
	if math.IsNaN(iou) || iou < 0 {
		return 0
	}
	return min(iou, 1)
}

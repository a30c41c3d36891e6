// Package geo provides geometry primitives in PDF user space, where the
// origin sits at the lower-left corner of the page and y increases upward.
package geo

import (
	"fmt"
	"math"
)

// Unit conversion constants. PDF user space uses 72 points per inch.
const (
	PointsPerInch = 72.0
	PointsPerCm   = 28.3465
)

// Point is a location in page coordinates.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle with X1 < X2 and Y1 < Y2.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NewRect normalizes the corner order so that X1 < X2 and Y1 < Y2.
func NewRect(x1, y1, x2, y2 float64) Rect {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.X2 - r.X1 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// IsEmpty reports whether the rectangle has non-positive extent on either axis.
func (r Rect) IsEmpty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Valid reports whether the corner ordering invariant holds.
func (r Rect) Valid() bool { return r.X1 < r.X2 && r.Y1 < r.Y2 }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: (r.X1 + r.X2) / 2, Y: (r.Y1 + r.Y2) / 2}
}

// Union returns the smallest rectangle covering both r and other.
func (r Rect) Union(other Rect) Rect {
	return Rect{
		X1: math.Min(r.X1, other.X1),
		Y1: math.Min(r.Y1, other.Y1),
		X2: math.Max(r.X2, other.X2),
		Y2: math.Max(r.Y2, other.Y2),
	}
}

// Contains returns true if the point (x, y) lies within the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.2f %.2f %.2f %.2f]", r.X1, r.Y1, r.X2, r.Y2)
}

// CenterDistance returns the Euclidean distance between the centers of two
// rectangles.
func CenterDistance(a, b Rect) float64 {
	ca, cb := a.Center(), b.Center()
	return math.Hypot(cb.X-ca.X, cb.Y-ca.Y)
}

// RelativePosition describes where one rectangle sits relative to another.
type RelativePosition string

const (
	PositionTop    RelativePosition = "top"
	PositionBottom RelativePosition = "bottom"
	PositionLeft   RelativePosition = "left"
	PositionRight  RelativePosition = "right"
	PositionNone   RelativePosition = "none"
)

// RelativePositionOf classifies the position of b relative to a by the
// dominant axis of the center offset. Horizontal dominance yields left/right
// by the sign of dx; vertical dominance yields top/bottom by the sign of dy
// (y increases upward, so positive dy means b is above a).
func RelativePositionOf(a, b Rect) RelativePosition {
	ca, cb := a.Center(), b.Center()
	dx := cb.X - ca.X
	dy := cb.Y - ca.Y
	if math.Abs(dx) > math.Abs(dy) {
		if dx < 0 {
			return PositionLeft
		}
		return PositionRight
	}
	if dy > 0 {
		return PositionTop
	}
	return PositionBottom
}

// PointsToInches converts a length in points to inches.
func PointsToInches(pts float64) float64 { return pts / PointsPerInch }

// PointsToCm converts a length in points to centimeters.
func PointsToCm(pts float64) float64 { return pts / PointsPerCm }

// Round2 rounds to two decimal places.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// Package geometry provides the planar measurements used by posture checks.
package geometry

import "math"

// epsilon keeps AngleDegrees finite when a ray has zero length.
const epsilon = 1e-6

// Point2D is a point in pixel space.
type Point2D struct {
	X, Y float64
}

// Sub returns the vector p - q.
func (p Point2D) Sub(q Point2D) Point2D {
	return Point2D{X: p.X - q.X, Y: p.Y - q.Y}
}

// Len returns the vector length of p.
func (p Point2D) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// AngleDegrees returns the angle at vertex b between rays b->a and b->c,
// in degrees within [0, 180].
// Degenerate input (a or c on top of b) yields a defined angle near 90°
// rather than an error.
func AngleDegrees(a, b, c Point2D) float64 {
	ba := a.Sub(b)
	bc := c.Sub(b)

	cosine := (ba.X*bc.X + ba.Y*bc.Y) / (ba.Len()*bc.Len() + epsilon)

	// Rounding can push the cosine a hair past ±1
	cosine = math.Max(-1, math.Min(1, cosine))

	return Degrees(math.Acos(cosine))
}

// VerticalDifference returns |p.Y - q.Y|.
func VerticalDifference(p, q Point2D) float64 {
	return math.Abs(p.Y - q.Y)
}

// Distance returns the Euclidean distance between p and q.
func Distance(p, q Point2D) float64 {
	return p.Sub(q).Len()
}

// Degrees converts radians to degrees.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

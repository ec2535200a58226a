// Package geometry computes joint angles from pose landmarks.
package geometry

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
)

// vec converts a landmark into a 3D vector, dropping visibility.
func vec(l pose.Landmark) r3.Vector {
	return r3.Vector{X: l.X, Y: l.Y, Z: l.Z}
}

// Angle3D returns the angle at vertex b formed by a-b-c, using full 3D vectors.
// The result is in degrees, rounded to the nearest integer, within [0, 180].
// If either arm of the angle has zero length the result is 0.
func Angle3D(a, b, c pose.Landmark) float64 {
	ba := vec(a).Sub(vec(b))
	bc := vec(c).Sub(vec(b))

	mag := ba.Norm() * bc.Norm()
	if mag == 0 {
		return 0
	}

	cos := clamp(ba.Dot(bc)/mag, -1, 1)
	return math.Round(math.Acos(cos) * 180 / math.Pi)
}

// Angle2D returns the angle at vertex b formed by a-b-c in the image plane.
// Depth is ignored. The result is in degrees, folded into [0, 180] and
// rounded to one decimal place.
func Angle2D(a, b, c pose.Landmark) float64 {
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	deg := math.Abs(radians * 180 / math.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return Round1(deg)
}

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

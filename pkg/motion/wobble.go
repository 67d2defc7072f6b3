package motion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultWobbleFactor is the diagonal-to-displacement ratio above which a
// tail window counts as postural sway.
const DefaultWobbleFactor = 5.0

const epsilon = 1e-9

// Spread returns the bounding-box diagonal of the points and the net
// displacement between the first and last point.
func Spread(points []mgl64.Vec3) (diagonal, displacement float64) {
	if len(points) < 2 {
		return 0, 0
	}
	lo := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, p := range points {
		for axis := 0; axis < 3; axis++ {
			lo[axis] = math.Min(lo[axis], p[axis])
			hi[axis] = math.Max(hi[axis], p[axis])
		}
	}
	diagonal = hi.Sub(lo).Len()
	displacement = points[len(points)-1].Sub(points[0]).Len()
	return diagonal, displacement
}

// Wobbling reports whether the points describe sway rather than a step:
// the bounding-box diagonal exceeds factor times the net displacement.
func Wobbling(points []mgl64.Vec3, factor float64) bool {
	diagonal, displacement := Spread(points)
	return diagonal > factor*displacement+epsilon
}

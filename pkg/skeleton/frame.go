package skeleton

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Joint is a single joint reading in camera space (metres, sensor at origin,
// +Y up, +Z away from the sensor).
type Joint struct {
	Position mgl64.Vec3
	State    TrackingState
}

// Body is one tracked skeleton.
type Body struct {
	TrackingID uint64
	Tracked    bool
	Joints     map[JointType]Joint
}

// Joint returns the reading for jt and whether it is usable.
func (b *Body) Joint(jt JointType) (Joint, bool) {
	if b == nil || b.Joints == nil {
		return Joint{}, false
	}
	j, ok := b.Joints[jt]
	if !ok || j.State == NotTracked {
		return Joint{}, false
	}
	return j, true
}

// Frame is one tracker sample.
type Frame struct {
	// Timestamp is the sensor-relative capture time.
	Timestamp time.Duration
	Bodies    []Body
	// Floor is the floor clip plane (a, b, c, w). A zero normal means the
	// tracker did not estimate one.
	Floor mgl64.Vec4
}

// HasFloor reports whether the frame carries a usable floor plane.
func (f *Frame) HasFloor() bool {
	return f != nil && (f.Floor[0] != 0 || f.Floor[1] != 0 || f.Floor[2] != 0)
}

// FloorDistance returns the signed height of p above the floor plane.
func (f *Frame) FloorDistance(p mgl64.Vec3) float64 {
	n := f.Floor.Vec3()
	l := n.Len()
	if l == 0 {
		return p.Y()
	}
	return (n.Dot(p) + f.Floor.W()) / l
}

// SelectCenter returns the tracked body closest to the sensor's centre line
// (smallest |SpineBase.X|). It returns nil when no body is tracked.
func (f *Frame) SelectCenter() *Body {
	if f == nil {
		return nil
	}
	var (
		best    *Body
		bestAbs = math.Inf(1)
	)
	for i := range f.Bodies {
		b := &f.Bodies[i]
		if !b.Tracked {
			continue
		}
		spine, ok := b.Joints[SpineBase]
		if !ok {
			continue
		}
		if x := math.Abs(spine.Position.X()); x < bestAbs {
			best, bestAbs = b, x
		}
	}
	return best
}

// Distance returns the body's distance to the sensor along Z, measured at
// the spine base.
func (b *Body) Distance() (float64, bool) {
	j, ok := b.Joint(SpineBase)
	if !ok {
		return 0, false
	}
	return j.Position.Z(), true
}

package classify

// Ramp is a temporary boost added to the speed modifier. It climbs to
// Increment in equal steps over the ease-in ticks, holds, then returns to
// zero in equal steps over the ease-out ticks. The last step of each phase
// lands exactly on its target so float drift never accumulates.
type Ramp struct {
	increment float64
	easeIn    int
	hold      int
	easeOut   int

	tick    int
	applied float64
}

// NewRamp builds a ramp. Phase lengths below one tick are raised to one,
// except hold which may be zero.
func NewRamp(increment float64, easeIn, hold, easeOut int) *Ramp {
	if easeIn < 1 {
		easeIn = 1
	}
	if easeOut < 1 {
		easeOut = 1
	}
	if hold < 0 {
		hold = 0
	}
	return &Ramp{increment: increment, easeIn: easeIn, hold: hold, easeOut: easeOut}
}

// Applied returns the ramp's current contribution.
func (r *Ramp) Applied() float64 {
	return r.applied
}

// Len returns the total number of ticks the ramp runs for.
func (r *Ramp) Len() int {
	return r.easeIn + r.hold + r.easeOut
}

// Done reports whether the ramp has finished.
func (r *Ramp) Done() bool {
	return r.tick >= r.Len()
}

// Step advances the ramp one tick and reports whether it is still running.
func (r *Ramp) Step() bool {
	if r.Done() {
		return false
	}
	r.tick++

	switch {
	case r.tick < r.easeIn:
		r.applied += r.increment / float64(r.easeIn)
	case r.tick == r.easeIn:
		r.applied = r.increment
	case r.tick <= r.easeIn+r.hold:
	case r.tick < r.Len():
		r.applied -= r.increment / float64(r.easeOut)
	default:
		r.applied = 0
	}
	return !r.Done()
}

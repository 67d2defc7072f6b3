package skeleton

// Advice is a placement hint for the player. It is informational only.
type Advice int

const (
	AdviceOK Advice = iota
	AdviceNoSensor
	AdviceNoUser
	AdviceTooClose
	AdviceTooFar
	AdviceMoveLeft
	AdviceMoveRight
)

var adviceText = map[Advice]string{
	AdviceOK:        "",
	AdviceNoSensor:  "No sensor detected",
	AdviceNoUser:    "No user detected",
	AdviceTooClose:  "You are too close to the sensor",
	AdviceTooFar:    "You are too far from the sensor",
	AdviceMoveLeft:  "Please move left to the center of the sensor",
	AdviceMoveRight: "Please move right to the center of the sensor",
}

func (a Advice) String() string {
	return adviceText[a]
}

// Placement bounds the comfortable play area in metres.
type Placement struct {
	MinZ float64 `yaml:"min_z" json:"min_z"`
	MaxZ float64 `yaml:"max_z" json:"max_z"`
	MaxX float64 `yaml:"max_x" json:"max_x"`
}

// DefaultPlacement returns the bounds used by the stationary setup.
func DefaultPlacement() Placement {
	return Placement{MinZ: 0.4, MaxZ: 1.0, MaxX: 0.4}
}

// Advise classifies the selected body's placement. A nil frame means the
// sensor produced nothing.
func (p Placement) Advise(f *Frame, b *Body) Advice {
	if f == nil {
		return AdviceNoSensor
	}
	if b == nil {
		return AdviceNoUser
	}
	spine, ok := b.Joint(SpineBase)
	if !ok {
		return AdviceNoUser
	}
	x, z := spine.Position.X(), spine.Position.Z()
	switch {
	case z < p.MinZ:
		return AdviceTooClose
	case z > p.MaxZ:
		return AdviceTooFar
	case x < -p.MaxX:
		return AdviceMoveRight
	case x > p.MaxX:
		return AdviceMoveLeft
	default:
		return AdviceOK
	}
}

// Package interval draws randomized dwell durations for the light cycle.
//
// Two methods are supported. Uniform interpolates linearly between the bounds.
// Normal uses the Marsaglia polar method centred on the midpoint with sigma set
// so the bounds sit at three standard deviations, then clamps the result into
// the bounds. Outliers are folded onto the edges rather than rejected.
package interval

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/teslashibe/go-redlight/pkg/omath"
)

// MaxIterations caps the polar-method rejection loop. Past it the generator
// falls back to the uniform method.
const MaxIterations = 1000

// ErrInvalidBounds is returned when a range has min > max or a negative bound.
var ErrInvalidBounds = errors.New("interval: invalid bounds")

// Method selects the sampling distribution.
type Method int

const (
	Uniform Method = iota
	Normal
)

func (m Method) String() string {
	switch m {
	case Uniform:
		return "uniform"
	case Normal:
		return "normal"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// UnmarshalText parses "uniform" or "normal".
func (m *Method) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "uniform", "linear":
		*m = Uniform
	case "normal":
		*m = Normal
	default:
		return fmt.Errorf("interval: unknown method %q", text)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Bounds is an inclusive duration range.
type Bounds struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// Validate rejects inverted or negative ranges.
func (b Bounds) Validate() error {
	if b.Min < 0 || b.Max < 0 {
		return fmt.Errorf("%w: negative bound [%v, %v]", ErrInvalidBounds, b.Min, b.Max)
	}
	if b.Min > b.Max {
		return fmt.Errorf("%w: min %v > max %v", ErrInvalidBounds, b.Min, b.Max)
	}
	return nil
}

// Generator produces bounded random values. It is not safe for concurrent use.
type Generator struct {
	method    Method
	rng       *rand.Rand
	fallbacks int
}

// New creates a generator using the given method and seed.
func New(method Method, seed uint64) *Generator {
	return &Generator{
		method: method,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// SeedFrom derives a stable seed from a session identifier.
func SeedFrom(id string) uint64 {
	return xxh3.HashString(id)
}

// Method returns the configured sampling method.
func (g *Generator) Method() Method {
	return g.method
}

// Fallbacks reports how many Normal draws hit the iteration cap.
func (g *Generator) Fallbacks() int {
	return g.fallbacks
}

// Generate returns a value in [min, max]. Callers validate min <= max.
func (g *Generator) Generate(min, max float64) float64 {
	if min >= max {
		return min
	}
	switch g.method {
	case Normal:
		return g.normal(min, max)
	default:
		return g.uniform(min, max)
	}
}

// Duration draws a duration from b.
func (g *Generator) Duration(b Bounds) time.Duration {
	v := g.Generate(b.Min.Seconds(), b.Max.Seconds())
	d := time.Duration(v * float64(time.Second))
	// float round trip can land a nanosecond outside the range
	if d < b.Min {
		d = b.Min
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

func (g *Generator) uniform(min, max float64) float64 {
	return omath.Lerp(min, max, g.rng.Float64())
}

func (g *Generator) normal(min, max float64) float64 {
	mean := (min + max) / 2
	sigma := (max - mean) / 3

	for i := 0; i < MaxIterations; i++ {
		u := 2*g.rng.Float64() - 1
		v := 2*g.rng.Float64() - 1
		s := u*u + v*v
		if s >= 1 || s == 0 {
			continue
		}
		z := u * math.Sqrt(-2*math.Log(s)/s)
		return omath.Clamp(mean+z*sigma, min, max)
	}

	g.fallbacks++
	return g.uniform(min, max)
}

package common

import "math"

const (
	// TickRate is the fixed physics tick frequency.
	TickRate = 60
	// TickSeconds is the duration of one physics tick.
	TickSeconds = 1.0 / TickRate

	// Gravity is applied as tyre normal load; the arena is seen from above.
	Gravity = 981.0
)

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// DegToRad converts degrees (or degrees per second) to radians.
func DegToRad(deg float64) float64 {
	return deg / 180 * math.Pi
}

// RadToDeg converts radians (or radians per second) to degrees.
func RadToDeg(rad float64) float64 {
	return rad / math.Pi * 180
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Approach moves current toward target by at most step.
func Approach(current, target, step float64) float64 {
	if step <= 0 {
		return target
	}
	if current < target {
		return math.Min(current+step, target)
	}
	return math.Max(current-step, target)
}

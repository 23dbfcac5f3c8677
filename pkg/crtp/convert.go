package crtp

import "math"

const (
	MaxAngle   = 30.0  // degrees, roll and pitch
	MaxYawRate = 200.0 // degrees per second
	MaxThrust  = 65535
)

// PercentageToAngle maps a stick percentage in [-100,100] to an angle of up to maxAngle degrees.
func PercentageToAngle(pct, maxAngle float64) float64 {
	return ClampPercent(pct) / 100 * maxAngle
}

func PercentageToYawRate(pct, maxRate float64) float64 {
	return ClampPercent(pct) / 100 * maxRate
}

// PercentageToThrust maps [0,100] onto the full 16-bit thrust range.
func PercentageToThrust(pct float64) uint16 {
	if math.IsNaN(pct) {
		return 0
	}
	pct = math.Max(0, math.Min(100, pct))
	return uint16(math.Round(pct / 100 * MaxThrust))
}

func ThrustToPercentage(v uint16) float64 {
	return float64(v) / MaxThrust * 100
}

// ClampPercent limits a percentage to [-100,100]; NaN becomes 0.
func ClampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-100, math.Min(100, v))
}

func clampFloat(v float32, limit float32) float32 {
	switch {
	case v != v:
		return 0
	case v > limit:
		return limit
	case v < -limit:
		return -limit
	}
	return v
}

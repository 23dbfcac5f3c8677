package crtp

import "math"

// CommanderBuilder assembles a Setpoint from stick percentages.
type CommanderBuilder struct {
	roll, pitch, yaw float64
	thrust           float64
	maxAngle         float64
	maxYawRate       float64
}

func NewCommanderBuilder() *CommanderBuilder {
	return &CommanderBuilder{
		maxAngle:   MaxAngle,
		maxYawRate: MaxYawRate,
	}
}

func (cb *CommanderBuilder) WithLimits(maxAngle, maxYawRate float64) *CommanderBuilder {
	if maxAngle > 0 {
		cb.maxAngle = math.Min(maxAngle, MaxAngle)
	}
	if maxYawRate > 0 {
		cb.maxYawRate = math.Min(maxYawRate, MaxYawRate)
	}
	return cb
}

func (cb *CommanderBuilder) Roll(pct float64) *CommanderBuilder {
	cb.roll = ClampPercent(pct)
	return cb
}

func (cb *CommanderBuilder) Pitch(pct float64) *CommanderBuilder {
	cb.pitch = ClampPercent(pct)
	return cb
}

func (cb *CommanderBuilder) Yaw(pct float64) *CommanderBuilder {
	cb.yaw = ClampPercent(pct)
	return cb
}

// Thrust takes [0,100]; negative lift is not a thing.
func (cb *CommanderBuilder) Thrust(pct float64) *CommanderBuilder {
	cb.thrust = math.Max(0, ClampPercent(pct))
	return cb
}

func (cb *CommanderBuilder) Setpoint() Setpoint {
	return Setpoint{
		Roll:   float32(PercentageToAngle(cb.roll, cb.maxAngle)),
		Pitch:  float32(PercentageToAngle(cb.pitch, cb.maxAngle)),
		Yaw:    float32(PercentageToYawRate(cb.yaw, cb.maxYawRate)),
		Thrust: PercentageToThrust(cb.thrust),
	}
}

func (cb *CommanderBuilder) Build() Commander {
	return EncodeCommander(cb.Setpoint())
}

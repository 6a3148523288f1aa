// Package actuator models motor-driven wheels and the groups that drive them
// together. Actuators are advanced once per physics tick through Render.
package actuator

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the commanded run mode of an actuator.
type Mode int

const (
	ModeStopped Mode = iota + 1
	ModeRunForever
	ModeRunTimed
	ModeRunToPosition
)

func (m Mode) String() string {
	switch m {
	case ModeStopped:
		return "stopped"
	case ModeRunForever:
		return "run-forever"
	case ModeRunTimed:
		return "run-timed"
	case ModeRunToPosition:
		return "run-to-position"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// StopAction selects the resistive force applied on Stop.
type StopAction string

const (
	StopHold  StopAction = "hold"
	StopBrake StopAction = "brake"
	StopCoast StopAction = "coast"
)

// ParseStopAction accepts hold, brake or coast in any case.
func ParseStopAction(s string) (StopAction, error) {
	switch StopAction(strings.ToLower(strings.TrimSpace(s))) {
	case StopHold:
		return StopHold, nil
	case StopBrake:
		return StopBrake, nil
	case StopCoast:
		return StopCoast, nil
	}
	return "", fmt.Errorf("actuator: unknown stop action %q", s)
}

// State is the observable motor state. It is informational only.
type State string

const (
	StateRunning    State = "running"
	StateRamping    State = "ramping"
	StateHolding    State = "holding"
	StateOverloaded State = "overloaded"
	StateStalled    State = "stalled"
	StateNone       State = ""
)

// Joint is the motor-enabled hinge an actuator drives.
type Joint interface {
	// SetMotor drives the hinge toward targetVelocity (rad/s) with at most maxForce.
	SetMotor(targetVelocity, maxForce float64)
	// Angle is the continuous hinge rotation in radians.
	Angle() float64
	// Rate is the measured hinge angular velocity in rad/s.
	Rate() float64
}

// Actuator is the setpoint and run surface shared by single actuators and groups.
type Actuator interface {
	Port() string

	SpeedSetpoint() float64
	SetSpeedSetpoint(degPerSec float64)
	TimeSetpoint() float64
	SetTimeSetpoint(seconds float64)
	TimeTarget() time.Time
	SetTimeTarget(t time.Time)
	StopAction() StopAction
	SetStopAction(a StopAction)
	PositionSetpoint() float64
	SetPositionSetpoint(deg float64)
	Position() float64
	SetPosition(deg float64)
	Mode() Mode
	State() State

	RunForever()
	RunTimed()
	RunToPosition()
	Stop()
	Reset()
	Render(delta float64)
}

// Motor force constants, in the physics engine's torque units.
const (
	BrakeForce       = 2000.0
	CoastForce       = 1000.0
	DefaultHoldForce = 30000.0
	MotorForce       = 30000.0
)

var (
	_ Actuator = (*Wheel)(nil)
	_ Actuator = (*Group)(nil)
)

package actuator

import (
	"math"
	"time"

	"github.com/milk9111/robosim/common"
)

const (
	// rotation jumps larger than this between ticks count as a full-turn wrap
	wrapThreshold = 2.0

	stallRatio   = 0.05
	stallSeconds = 0.5
)

// Options tunes a wheel's motor behaviour.
type Options struct {
	// MaxAcceleration limits how far the applied rate (rad/s) may move per tick.
	// Zero applies the setpoint immediately.
	MaxAcceleration float64
	// HoldForce is the motor force used by StopHold.
	HoldForce float64
	Clock     common.Clock
}

type seekTarget struct {
	target   float64
	reversed bool
}

func (s seekTarget) reached(position float64) bool {
	if s.reversed {
		return position <= s.target
	}
	return position >= s.target
}

// Wheel is a single motor port driving a hinge joint.
type Wheel struct {
	port  string
	opts  Options
	clock common.Clock
	joint Joint

	mode       Mode
	state      State
	speedSP    float64
	timeSP     float64
	timeTarget time.Time
	stopAction StopAction
	positionSP float64
	seek       seekTarget

	position           float64
	actualPosition     float64
	positionAdjustment float64
	rotationRounds     int
	prevRotation       float64
	angleOffset        float64

	appliedRate float64
	stallTime   float64

	motorSet  bool
	lastRate  float64
	lastForce float64
}

// NewWheel creates a stopped wheel on port. The joint is attached later by AttachJoint.
func NewWheel(port string, opts Options) *Wheel {
	if opts.HoldForce <= 0 {
		opts.HoldForce = DefaultHoldForce
	}
	clock := opts.Clock
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &Wheel{
		port:       port,
		opts:       opts,
		clock:      clock,
		mode:       ModeStopped,
		state:      StateHolding,
		stopAction: StopHold,
	}
}

// AttachJoint binds the wheel to its hinge. Rotation is measured from the
// joint's current angle.
func (w *Wheel) AttachJoint(j Joint) {
	w.joint = j
	w.motorSet = false
	if j != nil {
		w.angleOffset = j.Angle()
	}
}

func (w *Wheel) Joint() Joint {
	return w.joint
}

func (w *Wheel) Port() string {
	return w.port
}

func (w *Wheel) SpeedSetpoint() float64             { return w.speedSP }
func (w *Wheel) SetSpeedSetpoint(degPerSec float64) { w.speedSP = degPerSec }
func (w *Wheel) TimeSetpoint() float64              { return w.timeSP }
func (w *Wheel) SetTimeSetpoint(seconds float64)    { w.timeSP = seconds }
func (w *Wheel) TimeTarget() time.Time              { return w.timeTarget }
func (w *Wheel) SetTimeTarget(t time.Time)          { w.timeTarget = t }
func (w *Wheel) StopAction() StopAction             { return w.stopAction }
func (w *Wheel) SetStopAction(a StopAction)         { w.stopAction = a }
func (w *Wheel) PositionSetpoint() float64          { return w.positionSP }
func (w *Wheel) SetPositionSetpoint(deg float64)    { w.positionSP = deg }
func (w *Wheel) Position() float64                  { return w.position }
func (w *Wheel) Mode() Mode                         { return w.mode }
func (w *Wheel) State() State                       { return w.state }
func (w *Wheel) ActualPosition() float64            { return w.actualPosition }
func (w *Wheel) RotationRounds() int                { return w.rotationRounds }

// SetPosition redefines the current position without moving the wheel.
func (w *Wheel) SetPosition(deg float64) {
	w.positionAdjustment = w.actualPosition - deg
	w.position = deg
}

// Speed is the measured wheel speed in degrees per second.
func (w *Wheel) Speed() float64 {
	if w.joint == nil {
		return 0
	}
	return common.RadToDeg(w.joint.Rate())
}

func (w *Wheel) RunForever() {
	w.start(ModeRunForever)
}

// RunTimed runs until TimeTarget. Callers set TimeSetpoint and TimeTarget first.
func (w *Wheel) RunTimed() {
	w.start(ModeRunTimed)
}

// RunToPosition seeks PositionSetpoint. The direction of travel is decided
// here and kept even if the setpoint changes before completion.
func (w *Wheel) RunToPosition() {
	w.seek = seekTarget{
		target:   w.positionSP,
		reversed: w.positionSP < w.position,
	}
	w.start(ModeRunToPosition)
}

func (w *Wheel) start(mode Mode) {
	w.requireJoint()
	if w.mode == ModeStopped {
		w.appliedRate = w.joint.Rate()
	}
	w.stallTime = 0
	w.mode = mode
}

func (w *Wheel) Stop() {
	w.requireJoint()
	w.mode = ModeStopped
	w.appliedRate = 0
	w.stallTime = 0

	switch w.stopAction {
	case StopHold:
		w.setMotor(0, w.opts.HoldForce)
		w.state = StateHolding
		w.positionSP = w.position
	case StopBrake:
		w.setMotor(0, BrakeForce)
		w.state = StateNone
	default:
		w.setMotor(0, CoastForce)
		w.state = StateNone
	}
}

// Reset stops the wheel and zeroes its position bookkeeping.
func (w *Wheel) Reset() {
	w.Stop()
	w.position = 0
	w.actualPosition = 0
	w.positionAdjustment = 0
	w.rotationRounds = 0
	w.prevRotation = 0
	w.angleOffset = w.joint.Angle()
}

// Render advances the wheel by one physics tick.
func (w *Wheel) Render(delta float64) {
	if w.joint == nil {
		return
	}
	w.updatePosition()

	switch w.mode {
	case ModeRunForever:
		w.driveAt(w.speedSP, delta)
	case ModeRunTimed:
		if !w.clock.Now().Before(w.timeTarget) {
			w.Stop()
			return
		}
		w.driveAt(w.speedSP, delta)
	case ModeRunToPosition:
		if w.seek.reached(w.position) {
			w.Stop()
			return
		}
		speed := math.Abs(w.speedSP)
		if w.seek.reversed {
			speed = -speed
		}
		w.driveAt(speed, delta)
	}
}

func (w *Wheel) updatePosition() {
	rotation := math.Remainder(w.joint.Angle()-w.angleOffset, 2*math.Pi)
	if w.prevRotation > wrapThreshold && rotation < -wrapThreshold {
		w.rotationRounds++
	} else if w.prevRotation < -wrapThreshold && rotation > wrapThreshold {
		w.rotationRounds--
	}
	w.prevRotation = rotation
	w.actualPosition = float64(w.rotationRounds)*360 + common.RadToDeg(rotation)
	w.position = w.actualPosition - w.positionAdjustment
}

func (w *Wheel) driveAt(degPerSec, delta float64) {
	target := common.DegToRad(degPerSec)
	w.appliedRate = common.Approach(w.appliedRate, target, w.opts.MaxAcceleration)
	w.setMotor(w.appliedRate, MotorForce)

	if w.appliedRate != target {
		w.state = StateRamping
		w.stallTime = 0
		return
	}
	w.state = StateRunning

	if math.Abs(target) > 0.1 && math.Abs(w.joint.Rate()) < stallRatio*math.Abs(target) {
		w.stallTime += delta
		if w.stallTime > stallSeconds {
			w.state = StateStalled
		}
		return
	}
	w.stallTime = 0
}

// setMotor skips commands identical to the last one sent.
func (w *Wheel) setMotor(rate, force float64) {
	if w.motorSet && rate == w.lastRate && force == w.lastForce {
		return
	}
	w.joint.SetMotor(rate, force)
	w.motorSet = true
	w.lastRate = rate
	w.lastForce = force
}

func (w *Wheel) requireJoint() {
	if w.joint == nil {
		panic("actuator: joint not loaded for port " + w.port)
	}
}

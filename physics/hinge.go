package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

// HingeMotor is a motor-enabled wheel joint. The wheel's spin lives on a
// shape-less rotor body driven by a simple motor against the static body;
// tyre traction then couples the rotor to the chassis at the mount point.
type HingeMotor struct {
	world   *World
	chassis *Body
	mount   cp.Vector
	radius  float64

	rotor *cp.Body
	motor *cp.Constraint

	friction float64
	load     float64
}

// HingeSpec describes a wheel mounted on a chassis.
type HingeSpec struct {
	// Mount is the wheel centre in chassis-local coordinates.
	Mount    cp.Vector
	Radius   float64
	Width    float64
	Impostor Impostor
	// Load is the normal force pressing the tyre into the floor.
	Load float64
}

// NewHingeMotor creates the wheel joint. The chassis must already be in the world.
func (w *World) NewHingeMotor(chassis *Body, spec HingeSpec) *HingeMotor {
	w.mu.Lock()
	defer w.mu.Unlock()

	mass := spec.Impostor.Mass
	if mass <= 0 {
		mass = 0.05
	}
	radius := spec.Radius
	if radius <= 0 {
		radius = 1
	}

	rotor := cp.NewBody(mass, cp.MomentForCircle(mass, 0, radius, cp.Vector{}))
	rotor.SetPosition(chassis.LocalToWorld(spec.Mount))
	w.space.AddBody(rotor)

	motor := cp.NewSimpleMotor(rotor, w.space.StaticBody, 0)
	motor.SetMaxForce(0)
	w.space.AddConstraint(motor)

	h := &HingeMotor{
		world:    w,
		chassis:  chassis,
		mount:    spec.Mount,
		radius:   radius,
		rotor:    rotor,
		motor:    motor,
		friction: spec.Impostor.Friction,
		load:     spec.Load,
	}
	w.hinges = append(w.hinges, h)
	return h
}

// RemoveHinge detaches h from the world.
func (w *World) RemoveHinge(h *HingeMotor) {
	if h == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, other := range w.hinges {
		if other == h {
			w.hinges = append(w.hinges[:i], w.hinges[i+1:]...)
			break
		}
	}
	w.space.RemoveConstraint(h.motor)
	w.space.RemoveBody(h.rotor)
}

// SetMotor drives the wheel toward targetVelocity rad/s using at most maxForce.
func (h *HingeMotor) SetMotor(targetVelocity, maxForce float64) {
	if m, ok := h.motor.Class.(*cp.SimpleMotor); ok {
		m.Rate = targetVelocity
	}
	h.motor.SetMaxForce(maxForce)
}

// Angle is the accumulated wheel rotation in radians; positive rolls forward.
func (h *HingeMotor) Angle() float64 {
	return h.rotor.Angle()
}

// Rate is the wheel angular velocity in rad/s.
func (h *HingeMotor) Rate() float64 {
	return h.rotor.AngularVelocity()
}

func (h *HingeMotor) Radius() float64 {
	return h.radius
}

func (h *HingeMotor) Mount() cp.Vector {
	return h.mount
}

func (h *HingeMotor) SetLoad(load float64) {
	h.load = load
}

// Reset stops the rotor and clears its accumulated angle.
func (h *HingeMotor) Reset() {
	h.rotor.SetAngularVelocity(0)
	h.rotor.SetAngle(0)
}

// applyTraction resolves tyre slip at the contact patch with friction-limited
// impulses: longitudinally against the rotor, laterally against the floor.
func (h *HingeMotor) applyTraction(dt float64) {
	chassis := h.chassis.body
	if chassis == nil || h.load <= 0 || h.friction <= 0 {
		return
	}

	p := chassis.LocalToWorld(h.mount)
	rel := p.Sub(chassis.Position())
	fwd := cp.Vector{X: 0, Y: 1}.Rotate(chassis.Rotation())
	side := fwd.Perp()
	vp := chassis.VelocityAtWorldPoint(p)

	invMass := 1 / chassis.Mass()
	invMoment := 1 / chassis.Moment()
	invRotor := 1 / h.rotor.Moment()
	limit := h.friction * h.load * dt

	w := h.rotor.AngularVelocity()
	slip := vp.Dot(fwd) - w*h.radius
	rn := rel.Cross(fwd)
	k := invMass + rn*rn*invMoment + h.radius*h.radius*invRotor
	jt := clampImpulse(-slip/k, limit)
	chassis.ApplyImpulseAtWorldPoint(fwd.Mult(jt), p)
	h.rotor.SetAngularVelocity(w - jt*h.radius*invRotor)

	vp = chassis.VelocityAtWorldPoint(p)
	rs := rel.Cross(side)
	ks := invMass + rs*rs*invMoment
	js := clampImpulse(-vp.Dot(side)/ks, limit)
	chassis.ApplyImpulseAtWorldPoint(side.Mult(js), p)
}

func clampImpulse(j, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, j))
}

package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

// Impostor is the physical material of a body.
type Impostor struct {
	Mass        float64
	Friction    float64
	Restitution float64
}

// Body is a dynamic rigid body and the shapes attached to it.
type Body struct {
	world  *World
	body   *cp.Body
	shapes []*cp.Shape
	group  uint
	// collision type applied to every shape, including ones added later
	kind cp.CollisionType
}

// NewBoxBody adds a dynamic box of width (X) by length (Y) centred at pos.
func (w *World) NewBoxBody(imp Impostor, width, length float64, pos cp.Vector, angle float64) *Body {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.newBoxBodyLocked(imp, width, length, pos, angle)
}

func (w *World) newBoxBodyLocked(imp Impostor, width, length float64, pos cp.Vector, angle float64) *Body {
	mass := imp.Mass
	if mass <= 0 {
		mass = 1
	}
	body := cp.NewBody(mass, cp.MomentForBox(mass, width, length))
	body.SetPosition(pos)
	body.SetAngle(angle)
	body.SetAngularVelocity(0)

	shape := cp.NewBox(body, width, length, 0)
	shape.SetFriction(imp.Friction)
	shape.SetElasticity(imp.Restitution)
	shape.SetFilter(solidFilter)

	w.space.AddBody(body)
	w.space.AddShape(shape)

	return &Body{world: w, body: body, shapes: []*cp.Shape{shape}}
}

// RemoveBody takes b and its shapes out of the space.
func (w *World) RemoveBody(b *Body) {
	if b == nil || b.body == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range b.shapes {
		w.space.RemoveShape(s)
	}
	w.space.RemoveBody(b.body)
	delete(w.bumps, b.body)
	b.shapes = nil
}

// AddCircle attaches a circular shape at a local offset, as used for casters.
// The caller must hold the world lock.
func (b *Body) AddCircle(imp Impostor, radius float64, offset cp.Vector) {
	shape := cp.NewCircle(b.body, radius, offset)
	shape.SetFriction(imp.Friction)
	shape.SetElasticity(imp.Restitution)
	shape.SetFilter(b.filter())
	if b.kind != 0 {
		shape.SetCollisionType(b.kind)
	}
	b.world.space.AddShape(shape)
	b.shapes = append(b.shapes, shape)
}

// SetGroup moves every shape of b into collision group g.
func (b *Body) SetGroup(g uint) {
	b.group = g
	for _, s := range b.shapes {
		s.SetFilter(b.filter())
	}
}

func (b *Body) Group() uint {
	return b.group
}

func (b *Body) filter() cp.ShapeFilter {
	f := solidFilter
	f.Group = b.group
	return f
}

// MarkRobot tags the body so arena contacts are counted by World.Bumps.
func (b *Body) MarkRobot() {
	b.kind = collisionTypeRobot
	for _, s := range b.shapes {
		s.SetCollisionType(collisionTypeRobot)
	}
}

// SetDamping makes the body keep the given fraction of its velocity per second.
func (b *Body) SetDamping(keepPerSecond float64) {
	b.body.SetVelocityUpdateFunc(func(body *cp.Body, gravity cp.Vector, damping float64, dt float64) {
		cp.BodyUpdateVelocity(body, gravity, math.Pow(keepPerSecond, dt), dt)
	})
}

func (b *Body) CP() *cp.Body {
	return b.body
}

func (b *Body) Shapes() []*cp.Shape {
	return b.shapes
}

func (b *Body) Mass() float64 {
	return b.body.Mass()
}

func (b *Body) Position() cp.Vector {
	return b.body.Position()
}

// Angle is the heading in radians, counter-clockwise from the +Y axis.
func (b *Body) Angle() float64 {
	return b.body.Angle()
}

func (b *Body) Velocity() cp.Vector {
	return b.body.Velocity()
}

func (b *Body) AngularVelocity() float64 {
	return b.body.AngularVelocity()
}

// Forward is the unit vector the body faces.
func (b *Body) Forward() cp.Vector {
	return cp.Vector{X: 0, Y: 1}.Rotate(b.body.Rotation())
}

func (b *Body) LocalToWorld(p cp.Vector) cp.Vector {
	return b.body.LocalToWorld(p)
}

// SetPose teleports the body and clears its velocity. Spatial queries see
// the new pose after the next Step.
func (b *Body) SetPose(pos cp.Vector, angle float64) {
	b.body.SetPosition(pos)
	b.body.SetAngle(angle)
	b.body.SetVelocity(0, 0)
	b.body.SetAngularVelocity(0)
}

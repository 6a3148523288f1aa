package robot

import (
	"fmt"
	"log"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/robosim/actuator"
	"github.com/milk9111/robosim/common"
	"github.com/milk9111/robosim/physics"
	"github.com/milk9111/robosim/prefabs"
)

const (
	TypeWheelActuator    = "WheelActuator"
	TypeMotorActuator    = "MotorActuator"
	TypeUltrasonicSensor = "UltrasonicSensor"
	TypeColorSensor      = "ColorSensor"
	TypeGyroSensor       = "GyroSensor"
)

// DefaultUltrasonicRange is the furthest distance an ultrasonic sensor reports, in cm.
const DefaultUltrasonicRange = 255.0

// Component is one node of a robot's component tree.
type Component interface {
	Type() string
	Port() string
	// Mount is the component position in chassis-local coordinates.
	Mount() cp.Vector
	Children() []Component
}

type impostorLoader interface {
	loadImpostor(r *Robot)
}

type jointLoader interface {
	loadJoint(r *Robot)
}

type renderer interface {
	Render(dt float64)
}

type resetter interface {
	Reset()
}

type stopper interface {
	Stop()
}

type componentBuildFn func(r *Robot, spec prefabs.ComponentSpec, port string) (Component, error)

var componentRegistry = map[string]componentBuildFn{
	TypeWheelActuator:    buildWheelActuator,
	TypeMotorActuator:    buildMotorActuator,
	TypeUltrasonicSensor: buildUltrasonicSensor,
	TypeColorSensor:      buildColorSensor,
	TypeGyroSensor:       buildGyroSensor,
}

var actuatorTypes = map[string]bool{
	TypeWheelActuator: true,
	TypeMotorActuator: true,
}

func (r *Robot) loadComponents(specs []prefabs.ComponentSpec) []Component {
	var out []Component
	for _, spec := range specs {
		build, ok := componentRegistry[spec.Type]
		if !ok {
			log.Printf("robot: %s: unknown component type %q, skipped", r.name, spec.Type)
			continue
		}
		port := r.assignPort(spec)
		c, err := build(r, spec, port)
		if err != nil {
			log.Printf("robot: %s: build %s on %s: %v", r.name, spec.Type, port, err)
			continue
		}
		if len(spec.Components) > 0 {
			if p, ok := c.(interface{ setChildren([]Component) }); ok {
				p.setChildren(r.loadComponents(spec.Components))
			}
		}
		out = append(out, c)
	}
	return out
}

// assignPort keeps an explicit port. Otherwise sensors take in1, in2, ... and
// actuators take the next free out letter after the drive wheels.
func (r *Robot) assignPort(spec prefabs.ComponentSpec) string {
	if spec.Port != "" {
		return spec.Port
	}
	if actuatorTypes[spec.Type] {
		r.motorCount++
		return "out" + string(rune('A'+r.motorCount-1))
	}
	r.sensorCount++
	return fmt.Sprintf("in%d", r.sensorCount)
}

type base struct {
	typ      string
	port     string
	mount    cp.Vector
	rotation float64
	children []Component
}

func newBase(typ, port string, spec prefabs.ComponentSpec) base {
	return base{
		typ:      typ,
		port:     port,
		mount:    cp.Vector{X: spec.Position.X(), Y: spec.Position.Z()},
		rotation: spec.Rotation.Y(),
	}
}

func (b *base) Type() string                  { return b.typ }
func (b *base) Port() string                  { return b.port }
func (b *base) Mount() cp.Vector              { return b.mount }
func (b *base) Children() []Component         { return b.children }
func (b *base) setChildren(c []Component)     { b.children = c }
func (b *base) worldPoint(r *Robot) cp.Vector { return r.chassis.LocalToWorld(b.mount) }

// WheelActuator is a driven wheel with tyre traction on the floor.
type WheelActuator struct {
	base
	*actuator.Wheel
	wheel prefabs.WheelComponentSpec
	hinge *physics.HingeMotor
}

func wheelOptions(w prefabs.WheelSpec) prefabs.WheelComponentSpec {
	return prefabs.WheelComponentSpec{
		Diameter:            w.Diameter,
		Width:               w.Width,
		Mass:                w.Mass,
		Friction:            w.Friction,
		MaxAcceleration:     w.MaxAcceleration,
		StopActionHoldForce: w.StopActionHoldForce,
		TireDownwardsForce:  w.TireDownwardsForce,
	}
}

func newWheelActuator(r *Robot, port string, mount cp.Vector, opts prefabs.WheelComponentSpec) *WheelActuator {
	return &WheelActuator{
		base: base{typ: TypeWheelActuator, port: port, mount: mount},
		Wheel: actuator.NewWheel(port, actuator.Options{
			MaxAcceleration: opts.MaxAcceleration,
			HoldForce:       opts.StopActionHoldForce,
			Clock:           r.clock,
		}),
		wheel: opts,
	}
}

func buildWheelActuator(r *Robot, spec prefabs.ComponentSpec, port string) (Component, error) {
	opts, err := prefabs.DecodeComponentOptions(spec.Options, wheelOptions(r.spec.Wheel))
	if err != nil {
		return nil, err
	}
	w := newWheelActuator(r, port, cp.Vector{}, opts)
	w.base = newBase(TypeWheelActuator, port, spec)
	return w, nil
}

// Port disambiguates between the component and the embedded wheel.
func (a *WheelActuator) Port() string { return a.base.port }

func (a *WheelActuator) Hinge() *physics.HingeMotor { return a.hinge }

func (a *WheelActuator) loadJoint(r *Robot) {
	a.hinge = r.world.NewHingeMotor(r.chassis, physics.HingeSpec{
		Mount:  a.mount,
		Radius: a.wheel.Diameter / 2,
		Width:  a.wheel.Width,
		Impostor: physics.Impostor{
			Mass:     a.wheel.Mass,
			Friction: a.wheel.Friction,
		},
		Load: r.tyreLoad(a.wheel.TireDownwardsForce),
	})
	r.hinges = append(r.hinges, a.hinge)
	a.AttachJoint(a.hinge)
}

// MotorActuator is a free motor such as a claw. Its rotor has no traction.
type MotorActuator struct {
	base
	*actuator.Wheel
	motor prefabs.MotorComponentSpec
	hinge *physics.HingeMotor
}

func buildMotorActuator(r *Robot, spec prefabs.ComponentSpec, port string) (Component, error) {
	opts, err := prefabs.DecodeComponentOptions(spec.Options, prefabs.MotorComponentSpec{
		StopActionHoldForce: actuator.DefaultHoldForce,
		Mass:                0.05,
		Radius:              1,
	})
	if err != nil {
		return nil, err
	}
	return &MotorActuator{
		base: newBase(TypeMotorActuator, port, spec),
		Wheel: actuator.NewWheel(port, actuator.Options{
			MaxAcceleration: opts.MaxAcceleration,
			HoldForce:       opts.StopActionHoldForce,
			Clock:           r.clock,
		}),
		motor: opts,
	}, nil
}

func (a *MotorActuator) Port() string { return a.base.port }

func (a *MotorActuator) loadJoint(r *Robot) {
	a.hinge = r.world.NewHingeMotor(r.chassis, physics.HingeSpec{
		Mount:    a.mount,
		Radius:   a.motor.Radius,
		Impostor: physics.Impostor{Mass: a.motor.Mass},
	})
	r.hinges = append(r.hinges, a.hinge)
	a.AttachJoint(a.hinge)
}

// UltrasonicSensor measures the distance to the nearest solid shape ahead of it.
type UltrasonicSensor struct {
	base
	robot    *Robot
	maxRange float64
}

func buildUltrasonicSensor(r *Robot, spec prefabs.ComponentSpec, port string) (Component, error) {
	opts, err := prefabs.DecodeComponentOptions(spec.Options, prefabs.UltrasonicComponentSpec{
		MaxRange: DefaultUltrasonicRange,
	})
	if err != nil {
		return nil, err
	}
	if opts.MaxRange <= 0 {
		opts.MaxRange = DefaultUltrasonicRange
	}
	return &UltrasonicSensor{
		base:     newBase(TypeUltrasonicSensor, port, spec),
		robot:    r,
		maxRange: opts.MaxRange,
	}, nil
}

// Distance is in cm, capped at the sensor range.
func (s *UltrasonicSensor) Distance() float64 {
	r := s.robot
	origin := s.worldPoint(r)
	dir := cp.ForAngle(s.rotation + math.Pi/2).Rotate(r.chassis.CP().Rotation())
	return r.world.Raycast(origin, dir, s.maxRange, r.chassis.Group())
}

func (s *UltrasonicSensor) MaxRange() float64 {
	return s.maxRange
}

// ColorSensor looks straight down at the floor paint.
type ColorSensor struct {
	base
	robot *Robot
}

func buildColorSensor(r *Robot, spec prefabs.ComponentSpec, port string) (Component, error) {
	return &ColorSensor{base: newBase(TypeColorSensor, port, spec), robot: r}, nil
}

// RGB returns the floor colour channels in 0..255.
func (s *ColorSensor) RGB() [3]float64 {
	c := s.robot.world.GroundColorAt(s.worldPoint(s.robot))
	return [3]float64{float64(c.R), float64(c.G), float64(c.B)}
}

// ReflectedLightIntensity is the floor brightness in percent.
func (s *ColorSensor) ReflectedLightIntensity() float64 {
	rgb := s.RGB()
	return (rgb[0] + rgb[1] + rgb[2]) / 3 / 255 * 100
}

// GyroSensor reports the chassis heading relative to its last reset,
// clockwise positive, in degrees.
type GyroSensor struct {
	base
	robot  *Robot
	drift  float64
	offset float64
	bias   float64
}

func buildGyroSensor(r *Robot, spec prefabs.ComponentSpec, port string) (Component, error) {
	opts, err := prefabs.DecodeComponentOptions(spec.Options, prefabs.GyroComponentSpec{})
	if err != nil {
		return nil, err
	}
	return &GyroSensor{base: newBase(TypeGyroSensor, port, spec), robot: r, drift: opts.Drift}, nil
}

func (g *GyroSensor) loadImpostor(r *Robot) {
	g.offset = r.chassis.Angle()
}

func (g *GyroSensor) Angle() float64 {
	return -common.RadToDeg(g.robot.chassis.Angle()-g.offset) + g.bias
}

// Rate is the turn rate in degrees per second, clockwise positive.
func (g *GyroSensor) Rate() float64 {
	return -common.RadToDeg(g.robot.chassis.AngularVelocity()) + g.drift
}

func (g *GyroSensor) Render(dt float64) {
	g.bias += g.drift * dt
}

func (g *GyroSensor) Reset() {
	g.offset = g.robot.chassis.Angle()
	g.bias = 0
}

var (
	_ Component         = (*WheelActuator)(nil)
	_ Component         = (*MotorActuator)(nil)
	_ Component         = (*UltrasonicSensor)(nil)
	_ Component         = (*ColorSensor)(nil)
	_ Component         = (*GyroSensor)(nil)
	_ actuator.Actuator = (*WheelActuator)(nil)
	_ actuator.Actuator = (*MotorActuator)(nil)
	_ jointLoader       = (*WheelActuator)(nil)
	_ impostorLoader    = (*GyroSensor)(nil)
)

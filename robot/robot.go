// Package robot assembles a robot from its prefab spec: the chassis and caster
// impostors, the component tree of actuators and sensors, the wheel joints and
// the left/right drive groups.
package robot

import (
	"errors"
	"fmt"
	"image/color"
	"log"
	"math"
	"sync"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/robosim/actuator"
	"github.com/milk9111/robosim/common"
	"github.com/milk9111/robosim/executor"
	"github.com/milk9111/robosim/physics"
	"github.com/milk9111/robosim/prefabs"
)

// Single is the player number of a robot outside a multi-robot arena.
const Single = -1

var (
	ErrInvalidBody = errors.New("robot: body must have a positive width and length")
	ErrNoWorld     = errors.New("robot: world is nil")
)

// Pose is a position on the arena floor and a heading in radians,
// counter-clockwise from +Y.
type Pose struct {
	Position cp.Vector
	Heading  float64
}

// PoseFromStart converts a prefab start pose, whose heading is in degrees.
func PoseFromStart(s prefabs.StartSpec) Pose {
	return Pose{
		Position: cp.Vector{X: s.Position[0], Y: s.Position[1]},
		Heading:  common.DegToRad(s.Heading),
	}
}

type Options struct {
	Name   string
	Player int
	Clock  common.Clock
	// Directory resolves radio recipients. Nil disables delivery.
	Directory Directory
}

// Robot is an assembled robot. Methods that touch physics or actuators expect
// the world lock to be held unless they say otherwise.
type Robot struct {
	name   string
	player int
	spec   prefabs.RobotSpec
	world  *physics.World
	clock  common.Clock
	dir    Directory
	exec   *executor.Executor

	chassis *physics.Body
	start   Pose

	components  []Component
	driveWheels []*WheelActuator
	leftWheel   actuator.Actuator
	rightWheel  actuator.Actuator
	hinges      []*physics.HingeMotor

	sensorCount int
	motorCount  int

	removeHook func()
	led        color.RGBA

	mu        sync.Mutex
	mailboxes map[string][]Message
	buttons   map[string]bool
}

// Load builds a robot in world at start. It must be called without the world
// lock held.
func Load(world *physics.World, spec prefabs.RobotSpec, start Pose, opts Options) (*Robot, error) {
	if world == nil {
		return nil, ErrNoWorld
	}
	if spec.Body.Width <= 0 || spec.Body.Length <= 0 {
		return nil, fmt.Errorf("load %q: %w", spec.Name, ErrInvalidBody)
	}

	clock := opts.Clock
	if clock == nil {
		clock = common.SystemClock{}
	}
	name := opts.Name
	if name == "" {
		name = spec.Name
	}
	if name == "" {
		name = "robot"
	}

	r := &Robot{
		name:      name,
		player:    opts.Player,
		spec:      spec,
		world:     world,
		clock:     clock,
		dir:       opts.Directory,
		start:     start,
		led:       spec.Color.RGBA8(color.RGBA{R: 0xf0, G: 0x9c, B: 0x0d, A: 0xff}),
		mailboxes: make(map[string][]Message),
		buttons:   make(map[string]bool),
	}
	if spec.Wheels {
		r.motorCount = 2
	}
	r.exec = executor.New(executor.Options{
		Name:   name,
		Clock:  clock,
		Locker: world.Locker(),
		OnStop: r.StopAll,
	})

	r.components = r.loadComponents(spec.Components)
	r.AssignWheelActuatorGroups()
	r.loadImpostors()
	r.loadJoints(r.components)
	if spec.Wheels {
		r.loadDriveWheels()
	}

	r.removeHook = world.BeforeStep(r.render)
	log.Printf("robot: %s: loaded with %d component(s)", r.name, len(r.components))
	return r, nil
}

func (r *Robot) loadImpostors() {
	body := r.spec.Body
	r.chassis = r.world.NewBoxBody(physics.Impostor{
		Mass:        body.Mass,
		Friction:    body.Friction,
		Restitution: body.Restitution,
	}, body.Width, body.Length, r.start.Position, r.start.Heading)

	group := r.world.NewGroup()
	locker := r.world.Locker()
	locker.Lock()
	defer locker.Unlock()

	if r.spec.Caster {
		c := r.spec.CasterBall
		diameter := c.Diameter
		if diameter <= 0 {
			diameter = r.spec.Wheel.Diameter
		}
		offset := cp.Vector{X: 0, Y: -body.Length/2 + diameter/2 + c.OffsetZ}
		r.chassis.AddCircle(physics.Impostor{Mass: c.Mass, Friction: c.Friction}, diameter/2, offset)
	}
	r.chassis.SetGroup(group)
	r.chassis.MarkRobot()
	if body.Damping > 0 {
		r.chassis.SetDamping(body.Damping)
	}
	r.loadComponentImpostors(r.components)
}

// loadComponentImpostors walks children before their parent.
func (r *Robot) loadComponentImpostors(components []Component) {
	for _, c := range components {
		r.loadComponentImpostors(c.Children())
		if l, ok := c.(impostorLoader); ok {
			l.loadImpostor(r)
		}
	}
}

// loadJoints walks parents before their children.
func (r *Robot) loadJoints(components []Component) {
	for _, c := range components {
		if l, ok := c.(jointLoader); ok {
			l.loadJoint(r)
		}
		r.loadJoints(c.Children())
	}
}

func (r *Robot) loadDriveWheels() {
	body, wheel := r.spec.Body, r.spec.Wheel
	x := (wheel.Width+body.Width)/2 + wheel.ToBodyOffset
	y := body.Length/2 - wheel.EdgeToCenterZ

	opts := wheelOptions(wheel)
	left := newWheelActuator(r, "outA", cp.Vector{X: -x, Y: y}, opts)
	right := newWheelActuator(r, "outB", cp.Vector{X: x, Y: y}, opts)
	left.loadJoint(r)
	right.loadJoint(r)

	r.driveWheels = []*WheelActuator{left, right}
	r.leftWheel = left
	r.rightWheel = right
}

// tyreLoad is the normal force on one drive wheel.
func (r *Robot) tyreLoad(downwards float64) float64 {
	mass := r.spec.Body.Mass
	if r.spec.Caster {
		mass += r.spec.CasterBall.Mass
	}
	count := len(r.GetComponentsByType(TypeWheelActuator))
	if r.spec.Wheels {
		count += 2
	}
	mass += float64(count) * r.spec.Wheel.Mass
	if count == 0 {
		count = 1
	}
	return mass*common.Gravity/float64(count) + math.Abs(downwards)
}

// AssignWheelActuatorGroups splits the WheelActuator components into a left
// group (local X <= 0) and a right group (X > 0). It does nothing when the
// drive wheels are already set.
func (r *Robot) AssignWheelActuatorGroups() {
	if r.leftWheel != nil || r.rightWheel != nil {
		return
	}
	var left, right []actuator.Actuator
	for _, c := range r.GetComponentsByType(TypeWheelActuator) {
		w, ok := c.(*WheelActuator)
		if !ok {
			continue
		}
		if w.Mount().X <= 0 {
			left = append(left, w)
		} else {
			right = append(right, w)
		}
	}
	if g := actuator.NewGroup(left...); g != nil {
		r.leftWheel = g
	}
	if g := actuator.NewGroup(right...); g != nil {
		r.rightWheel = g
	}
}

// GetComponentByPort returns the first component on port, depth first, or nil.
func (r *Robot) GetComponentByPort(port string) Component {
	return findByPort(r.components, port)
}

func findByPort(components []Component, port string) Component {
	for _, c := range components {
		if c.Port() == port {
			return c
		}
		if found := findByPort(c.Children(), port); found != nil {
			return found
		}
	}
	return nil
}

// GetComponentsByType collects every component of type typ, depth first.
func (r *Robot) GetComponentsByType(typ string) []Component {
	var out []Component
	var walk func([]Component)
	walk = func(components []Component) {
		for _, c := range components {
			if c.Type() == typ {
				out = append(out, c)
			}
			walk(c.Children())
		}
	}
	walk(r.components)
	return out
}

func (r *Robot) Components() []Component {
	return r.components
}

// LeftWheel is the left drive actuator, a wheel or a group. It may be nil.
func (r *Robot) LeftWheel() actuator.Actuator {
	return r.leftWheel
}

func (r *Robot) RightWheel() actuator.Actuator {
	return r.rightWheel
}

// render is the before-step hook. Groups are never rendered; every leaf
// actuator renders itself once.
func (r *Robot) render(dt float64) {
	for _, w := range r.driveWheels {
		w.Render(dt)
	}
	renderComponents(r.components, dt)
}

func renderComponents(components []Component, dt float64) {
	for _, c := range components {
		if rc, ok := c.(renderer); ok {
			rc.Render(dt)
		}
		renderComponents(c.Children(), dt)
	}
}

// Reset stops every actuator and zeroes position and sensor bookkeeping.
func (r *Robot) Reset() {
	if r.leftWheel != nil {
		r.leftWheel.Reset()
	}
	if r.rightWheel != nil {
		r.rightWheel.Reset()
	}
	eachComponent(r.components, func(c Component) {
		if rc, ok := c.(resetter); ok {
			rc.Reset()
		}
	})
}

// StopAll hard-stops both drive sides and every other actuator.
func (r *Robot) StopAll() {
	if r.leftWheel != nil {
		r.leftWheel.Stop()
	}
	if r.rightWheel != nil {
		r.rightWheel.Stop()
	}
	eachComponent(r.components, func(c Component) {
		if s, ok := c.(stopper); ok {
			s.Stop()
		}
	})
}

func eachComponent(components []Component, fn func(Component)) {
	for _, c := range components {
		fn(c)
		eachComponent(c.Children(), fn)
	}
}

// Place teleports the chassis and zeroes every wheel's spin.
func (r *Robot) Place(p Pose) {
	r.chassis.SetPose(p.Position, p.Heading)
	for _, h := range r.hinges {
		h.Reset()
	}
}

// Start is the pose the robot was loaded at.
func (r *Robot) Start() Pose {
	return r.start
}

// Destroy removes the robot from its world. It must be called without the
// world lock held.
func (r *Robot) Destroy() {
	r.exec.StopAll()
	if r.removeHook != nil {
		r.removeHook()
		r.removeHook = nil
	}
	for _, h := range r.hinges {
		r.world.RemoveHinge(h)
	}
	r.hinges = nil
	r.world.RemoveBody(r.chassis)
	log.Printf("robot: %s: destroyed", r.name)
}

func (r *Robot) Name() string                  { return r.name }
func (r *Robot) Player() int                   { return r.player }
func (r *Robot) Spec() prefabs.RobotSpec       { return r.spec }
func (r *Robot) World() *physics.World         { return r.world }
func (r *Robot) Clock() common.Clock           { return r.clock }
func (r *Robot) Executor() *executor.Executor  { return r.exec }
func (r *Robot) Chassis() *physics.Body        { return r.chassis }
func (r *Robot) Position() cp.Vector           { return r.chassis.Position() }
func (r *Robot) Heading() float64              { return r.chassis.Angle() }
func (r *Robot) Bumps() int                    { return r.world.Bumps(r.chassis) }
func (r *Robot) LED() color.RGBA               { return r.led }
func (r *Robot) SetLED(c color.RGBA)           { r.led = c }
func (r *Robot) Hinges() []*physics.HingeMotor { return r.hinges }

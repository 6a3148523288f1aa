// Package physics is the arena capability robots are built on: a top-down
// Chipmunk space with bodies, motor hinges, a per-tick before-step hook and
// ground-truth queries for sensors.
package physics

import (
	"image/color"
	"log"
	"math"
	"sync"

	"github.com/jakecoffman/cp"
)

const (
	collisionTypeWall cp.CollisionType = iota + 1
	collisionTypeObstacle
	collisionTypeRobot
)

const (
	categorySolid uint = 1 << iota
	categoryPaint
)

var (
	solidFilter = cp.ShapeFilter{Group: cp.NO_GROUP, Categories: categorySolid, Mask: cp.ALL_CATEGORIES}
	paintFilter = cp.ShapeFilter{Group: cp.NO_GROUP, Categories: categoryPaint, Mask: categoryPaint}
	paintQuery  = cp.ShapeFilter{Group: cp.NO_GROUP, Categories: cp.ALL_CATEGORIES, Mask: categoryPaint}
)

// Line is a painted stripe on the arena floor.
type Line struct {
	A, B  cp.Vector
	Width float64
	Color color.RGBA
}

// Patch is a painted rectangle on the arena floor.
type Patch struct {
	Min, Max cp.Vector
	Color    color.RGBA
}

// Obstacle is a box in the arena. A zero mass makes it static.
type Obstacle struct {
	Position cp.Vector
	Width    float64
	Length   float64
	Angle    float64
	Impostor Impostor
}

// Config describes the arena. The floor spans [-Width/2, Width/2] on X and
// [-Length/2, Length/2] on Y.
type Config struct {
	Width  float64
	Length float64

	Walls             bool
	WallThickness     float64
	WallFriction      float64
	WallRestitution   float64
	GroundFriction    float64
	GroundRestitution float64
	GroundColor       color.RGBA

	Lines     []Line
	Patches   []Patch
	Obstacles []Obstacle
}

// World owns the Chipmunk space. Step holds the world lock while it runs the
// before-step hooks and advances the space, so anything mutating bodies or
// actuators from another goroutine must hold Locker.
type World struct {
	mu    sync.Mutex
	space *cp.Space
	cfg   Config

	hooks    map[int]func(dt float64)
	hookIDs  []int
	nextHook int

	hinges    []*HingeMotor
	nextGroup uint

	steps   uint64
	elapsed float64
	bumps   map[*cp.Body]int
}

func NewWorld(cfg Config) *World {
	space := cp.NewSpace()
	space.Iterations = 20
	space.SetGravity(cp.Vector{})

	w := &World{
		space:     space,
		cfg:       cfg,
		hooks:     make(map[int]func(dt float64)),
		nextGroup: 1,
		bumps:     make(map[*cp.Body]int),
	}
	w.buildArena()
	w.setupHandlers()
	return w
}

func (w *World) Config() Config {
	return w.cfg
}

// Space returns the underlying Chipmunk space.
func (w *World) Space() *cp.Space {
	if w == nil {
		return nil
	}
	return w.space
}

// Locker guards every body, joint and actuator attached to this world.
func (w *World) Locker() sync.Locker {
	return &w.mu
}

// BeforeStep registers fn to run at the start of every Step, before traction
// and integration. Hooks run with the world lock held and in registration order.
func (w *World) BeforeStep(fn func(dt float64)) (remove func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.beforeStepLocked(fn)
}

func (w *World) beforeStepLocked(fn func(dt float64)) func() {
	id := w.nextHook
	w.nextHook++
	w.hooks[id] = fn
	w.hookIDs = append(w.hookIDs, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.removeHookLocked(id)
		})
	}
}

func (w *World) removeHookLocked(id int) {
	delete(w.hooks, id)
	for i, h := range w.hookIDs {
		if h == id {
			w.hookIDs = append(w.hookIDs[:i], w.hookIDs[i+1:]...)
			return
		}
	}
}

// Step advances the world by dt seconds.
func (w *World) Step(dt float64) {
	if w == nil || dt <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, id := range append([]int(nil), w.hookIDs...) {
		if fn, ok := w.hooks[id]; ok {
			fn(dt)
		}
	}
	for _, h := range w.hinges {
		h.applyTraction(dt)
	}
	w.space.Step(dt)

	w.steps++
	w.elapsed += dt
}

// Steps reports how many ticks have run.
func (w *World) Steps() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

// StepsLocked is Steps for callers already holding the world lock.
func (w *World) StepsLocked() uint64 {
	return w.steps
}

// Elapsed is simulated time in seconds.
func (w *World) Elapsed() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.elapsed
}

func (w *World) ElapsedLocked() float64 {
	return w.elapsed
}

// NewGroup allocates a collision group. Shapes sharing a group neither collide
// with each other nor show up in that group's sensor queries.
func (w *World) NewGroup() uint {
	w.mu.Lock()
	defer w.mu.Unlock()
	g := w.nextGroup
	w.nextGroup++
	return g
}

// Bumps reports how many wall or obstacle contacts body has started. The
// caller must hold the world lock.
func (w *World) Bumps(b *Body) int {
	if b == nil {
		return 0
	}
	return w.bumps[b.body]
}

// Raycast returns the distance from origin along dir to the first solid shape
// outside group, or maxDistance when nothing is hit. The caller must hold the
// world lock.
func (w *World) Raycast(origin, dir cp.Vector, maxDistance float64, group uint) float64 {
	if dir.LengthSq() == 0 || maxDistance <= 0 {
		return maxDistance
	}
	end := origin.Add(dir.Normalize().Mult(maxDistance))
	filter := cp.ShapeFilter{Group: group, Categories: cp.ALL_CATEGORIES, Mask: categorySolid}
	info := w.space.SegmentQueryFirst(origin, end, 0, filter)
	if info.Shape == nil {
		return maxDistance
	}
	return info.Alpha * maxDistance
}

// GroundColorAt samples the floor paint at p. The caller must hold the world lock.
func (w *World) GroundColorAt(p cp.Vector) color.RGBA {
	if !w.onFloor(p) {
		return color.RGBA{A: 255}
	}
	info := w.space.PointQueryNearest(p, 0, paintQuery)
	if info == nil || info.Shape == nil {
		return w.cfg.GroundColor
	}
	if c, ok := info.Shape.UserData.(color.RGBA); ok {
		return c
	}
	return w.cfg.GroundColor
}

func (w *World) onFloor(p cp.Vector) bool {
	return math.Abs(p.X) <= w.cfg.Width/2 && math.Abs(p.Y) <= w.cfg.Length/2
}

func (w *World) buildArena() {
	static := w.space.StaticBody

	for _, l := range w.cfg.Lines {
		width := l.Width
		if width <= 0 {
			width = 1
		}
		shape := cp.NewSegment(static, l.A, l.B, width/2)
		w.addPaint(shape, l.Color)
	}
	for _, p := range w.cfg.Patches {
		shape := cp.NewBox2(static, cp.BB{L: p.Min.X, B: p.Min.Y, R: p.Max.X, T: p.Max.Y}, 0)
		w.addPaint(shape, p.Color)
	}

	if w.cfg.Walls && w.cfg.Width > 0 && w.cfg.Length > 0 {
		hw, hl := w.cfg.Width/2, w.cfg.Length/2
		r := w.cfg.WallThickness / 2
		if r <= 0 {
			r = 1
		}
		segments := []struct {
			a cp.Vector
			b cp.Vector
		}{
			{a: cp.Vector{X: -hw - r, Y: -hl - r}, b: cp.Vector{X: hw + r, Y: -hl - r}},
			{a: cp.Vector{X: -hw - r, Y: hl + r}, b: cp.Vector{X: hw + r, Y: hl + r}},
			{a: cp.Vector{X: -hw - r, Y: -hl - r}, b: cp.Vector{X: -hw - r, Y: hl + r}},
			{a: cp.Vector{X: hw + r, Y: -hl - r}, b: cp.Vector{X: hw + r, Y: hl + r}},
		}
		for _, seg := range segments {
			shape := cp.NewSegment(static, seg.a, seg.b, r)
			shape.SetFriction(w.cfg.WallFriction)
			shape.SetElasticity(w.cfg.WallRestitution)
			shape.SetCollisionType(collisionTypeWall)
			shape.SetFilter(solidFilter)
			w.space.AddShape(shape)
		}
	}

	for _, o := range w.cfg.Obstacles {
		w.addObstacle(o)
	}
}

func (w *World) addPaint(shape *cp.Shape, c color.RGBA) {
	// not a sensor: point queries skip sensors
	shape.SetFilter(paintFilter)
	shape.UserData = c
	w.space.AddShape(shape)
}

func (w *World) addObstacle(o Obstacle) {
	if o.Width <= 0 || o.Length <= 0 {
		log.Printf("physics: skipping obstacle at (%.1f, %.1f) with size %.1fx%.1f", o.Position.X, o.Position.Y, o.Width, o.Length)
		return
	}
	if o.Impostor.Mass <= 0 {
		body := cp.NewStaticBody()
		body.SetPosition(o.Position)
		body.SetAngle(o.Angle)
		shape := cp.NewBox(body, o.Width, o.Length, 0)
		shape.SetFriction(o.Impostor.Friction)
		shape.SetElasticity(o.Impostor.Restitution)
		shape.SetCollisionType(collisionTypeObstacle)
		shape.SetFilter(solidFilter)
		w.space.AddBody(body)
		w.space.AddShape(shape)
		return
	}
	b := w.newBoxBodyLocked(o.Impostor, o.Width, o.Length, o.Position, o.Angle)
	for _, s := range b.shapes {
		s.SetCollisionType(collisionTypeObstacle)
	}
	b.SetDamping(floorDamping(w.cfg.GroundFriction))
}

func (w *World) setupHandlers() {
	for _, other := range []cp.CollisionType{collisionTypeWall, collisionTypeObstacle} {
		handler := w.space.NewCollisionHandler(collisionTypeRobot, other)
		handler.UserData = w
		handler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, data interface{}) bool {
			world, ok := data.(*World)
			if !ok {
				return true
			}
			a, _ := arb.Bodies()
			world.bumps[a]++
			return true
		}
	}
}

// floorDamping is the fraction of velocity a sliding body keeps per second.
func floorDamping(friction float64) float64 {
	return math.Exp(-2 * math.Max(friction, 0))
}

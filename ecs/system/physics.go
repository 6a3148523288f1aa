package system

import (
	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/physics"
)

// PhysicsSystem advances the arena by a fixed step. Robot actuators render
// inside the step through the world's before-step hooks.
type PhysicsSystem struct {
	world *physics.World
	dt    float64
}

func NewPhysicsSystem(world *physics.World, dt float64) *PhysicsSystem {
	return &PhysicsSystem{world: world, dt: dt}
}

func (ps *PhysicsSystem) Update(w *ecs.World) {
	if ps == nil || ps.world == nil {
		return
	}
	ps.world.Step(ps.dt)
}

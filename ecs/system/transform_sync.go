package system

import (
	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/ecs/component"
	"github.com/milk9111/robosim/physics"
)

// TransformSyncSystem copies each robot's chassis pose, velocity and bump
// count into its components and emits EventBump on new contacts.
type TransformSyncSystem struct {
	world *physics.World
}

func NewTransformSyncSystem(world *physics.World) *TransformSyncSystem {
	return &TransformSyncSystem{world: world}
}

func (s *TransformSyncSystem) Update(w *ecs.World) {
	if s == nil || s.world == nil || w == nil {
		return
	}
	lock := s.world.Locker()
	lock.Lock()
	defer lock.Unlock()

	ecs.ForEach(w, component.RobotComponent.Kind(), func(e ecs.Entity, ref *component.RobotRef) {
		if ref == nil || ref.Robot == nil {
			return
		}
		chassis := ref.Robot.Chassis()
		pos := chassis.Position()
		_ = ecs.Add(w, e, component.TransformComponent.Kind(), &component.Transform{
			X:       pos.X,
			Y:       pos.Y,
			Heading: chassis.Angle(),
		})
		vel := chassis.Velocity()
		_ = ecs.Add(w, e, component.MotionComponent.Kind(), &component.Motion{
			VX:   vel.X,
			VY:   vel.Y,
			Spin: chassis.AngularVelocity(),
		})

		bumps := ref.Robot.Bumps()
		contact, ok := ecs.Get(w, e, component.ContactComponent.Kind())
		if !ok {
			contact = &component.Contact{}
			_ = ecs.Add(w, e, component.ContactComponent.Kind(), contact)
		}
		if bumps > contact.Bumps {
			w.Events().Push(ecs.Event{Kind: ecs.EventBump, Entity: e, Data: bumps})
		}
		contact.Bumps = bumps
	})
}

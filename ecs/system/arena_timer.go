package system

import (
	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/ecs/component"
)

// ArenaTimerSystem advances enabled arena timers by a fixed step and emits
// EventTimerExpired once when a count-down timer runs out.
type ArenaTimerSystem struct {
	dt float64
}

func NewArenaTimerSystem(dt float64) *ArenaTimerSystem {
	return &ArenaTimerSystem{dt: dt}
}

func (s *ArenaTimerSystem) Update(w *ecs.World) {
	if s == nil || w == nil {
		return
	}
	ecs.ForEach(w, component.ArenaTimerComponent.Kind(), func(e ecs.Entity, timer *component.ArenaTimer) {
		if timer == nil || !timer.Enabled || timer.Expired {
			return
		}
		timer.Elapsed += s.dt
		if timer.CountDown && timer.Elapsed >= timer.Seconds {
			timer.Elapsed = timer.Seconds
			timer.Expired = true
			w.Events().Push(ecs.Event{Kind: ecs.EventTimerExpired, Entity: e})
		}
	})
}

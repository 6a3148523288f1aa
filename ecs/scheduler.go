package ecs

// System advances one concern of the arena, such as physics or the match
// timer, once per simulation tick.
type System interface {
	Update(w *World)
}

// Scheduler runs the arena systems in the order they were added. Events a
// system pushes are visible to the systems after it in the same tick.
type Scheduler struct {
	systems []System
}

func NewScheduler(systems ...System) *Scheduler {
	s := &Scheduler{}
	for _, system := range systems {
		s.Add(system)
	}
	return s
}

// Add appends system; nil is ignored so optional systems can be passed as is.
func (s *Scheduler) Add(system System) {
	if system == nil {
		return
	}
	s.systems = append(s.systems, system)
}

func (s *Scheduler) Update(w *World) {
	if w == nil {
		return
	}
	for _, system := range s.systems {
		system.Update(w)
	}
}

// Tick runs one simulation tick and returns the events it produced, leaving
// the world's queue empty for the next one.
func (s *Scheduler) Tick(w *World) []Event {
	if w == nil {
		return nil
	}
	s.Update(w)
	return w.Events().Drain()
}

func (s *Scheduler) Systems() []System {
	systems := make([]System, 0, len(s.systems))
	return append(systems, s.systems...)
}

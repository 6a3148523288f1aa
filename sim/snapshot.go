package sim

import (
	"fmt"
	"image/color"
	"math"

	"github.com/milk9111/robosim/actuator"
	"github.com/milk9111/robosim/common"
	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/ecs/component"
	"github.com/milk9111/robosim/robot"
)

// Snapshot is a JSON-friendly view of the arena after the last tick.
type Snapshot struct {
	Steps  uint64          `json:"steps"`
	Time   float64         `json:"time"`
	Timer  *TimerSnapshot  `json:"timer,omitempty"`
	Robots []RobotSnapshot `json:"robots"`
}

type TimerSnapshot struct {
	Elapsed   float64 `json:"elapsed"`
	Remaining float64 `json:"remaining,omitempty"`
	Expired   bool    `json:"expired"`
}

type RobotSnapshot struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Player int     `json:"player"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	// Heading in degrees, counter-clockwise from +Y.
	Heading float64            `json:"heading"`
	Speed   float64            `json:"speed"`
	Bumps   int                `json:"bumps"`
	LED     string             `json:"led"`
	Buttons []string           `json:"buttons,omitempty"`
	Queue   int                `json:"queue"`
	Left    *ActuatorSnapshot  `json:"left,omitempty"`
	Right   *ActuatorSnapshot  `json:"right,omitempty"`
	Motors  []ActuatorSnapshot `json:"motors,omitempty"`
	Program *ProgramSnapshot   `json:"program,omitempty"`
}

type ActuatorSnapshot struct {
	Port     string  `json:"port"`
	Mode     string  `json:"mode"`
	State    string  `json:"state"`
	Speed    float64 `json:"speed"`
	Position float64 `json:"position"`
}

type ProgramSnapshot struct {
	RunID   string `json:"run_id"`
	Lang    string `json:"lang"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Robots: []RobotSnapshot{}}
	if timer, ok := ecs.Get(s.world, s.arena, component.ArenaTimerComponent.Kind()); ok && timer.Enabled {
		snap.Timer = &TimerSnapshot{
			Elapsed:   timer.Elapsed,
			Remaining: timer.Remaining(),
			Expired:   timer.Expired,
		}
	}

	entities := s.robotEntitiesLocked()

	lock := s.physics.Locker()
	lock.Lock()
	defer lock.Unlock()
	// read under the lock so the two agree
	snap.Steps, snap.Time = s.physics.StepsLocked(), s.physics.ElapsedLocked()

	for _, e := range entities {
		snap.Robots = append(snap.Robots, s.robotSnapshotLocked(e))
	}
	return snap
}

// RobotSnapshot returns the snapshot of one robot.
func (s *Simulation) RobotSnapshot(e ecs.Entity) (RobotSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.robots[e]; !ok {
		return RobotSnapshot{}, false
	}
	lock := s.physics.Locker()
	lock.Lock()
	defer lock.Unlock()
	return s.robotSnapshotLocked(e), true
}

// robotSnapshotLocked expects both the simulation and world locks held.
func (s *Simulation) robotSnapshotLocked(e ecs.Entity) RobotSnapshot {
	r := s.robots[e]
	out := RobotSnapshot{
		ID:      e.String(),
		Name:    r.Name(),
		Player:  r.Player(),
		LED:     hexColor(r.LED()),
		Buttons: r.PressedButtons(),
		Queue:   r.Executor().Len(),
	}

	if tr, ok := ecs.Get(s.world, e, component.TransformComponent.Kind()); ok {
		out.X, out.Y, out.Heading = tr.X, tr.Y, common.RadToDeg(tr.Heading)
	} else {
		// not ticked yet
		pos := r.Position()
		out.X, out.Y, out.Heading = pos.X, pos.Y, common.RadToDeg(r.Heading())
	}
	if m, ok := ecs.Get(s.world, e, component.MotionComponent.Kind()); ok {
		out.Speed = math.Hypot(m.VX, m.VY)
	}
	if c, ok := ecs.Get(s.world, e, component.ContactComponent.Kind()); ok {
		out.Bumps = c.Bumps
	}
	if p, ok := ecs.Get(s.world, e, component.ProgramComponent.Kind()); ok {
		out.Program = &ProgramSnapshot{RunID: p.RunID, Lang: p.Lang, Running: p.Running, Error: p.Err}
	}

	if a := r.LeftWheel(); a != nil {
		snap := actuatorSnapshot(a)
		out.Left = &snap
	}
	if a := r.RightWheel(); a != nil {
		snap := actuatorSnapshot(a)
		out.Right = &snap
	}
	for _, c := range r.GetComponentsByType(robot.TypeMotorActuator) {
		if a, ok := c.(actuator.Actuator); ok {
			out.Motors = append(out.Motors, actuatorSnapshot(a))
		}
	}
	return out
}

func actuatorSnapshot(a actuator.Actuator) ActuatorSnapshot {
	return ActuatorSnapshot{
		Port:     a.Port(),
		Mode:     a.Mode().String(),
		State:    string(a.State()),
		Speed:    a.SpeedSetpoint(),
		Position: a.Position(),
	}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

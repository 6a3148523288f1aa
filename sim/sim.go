// Package sim runs an arena: one physics world, the robots placed in it and
// the programs driving them, advanced at a fixed tick by the ECS scheduler.
package sim

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/milk9111/robosim/common"
	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/ecs/component"
	"github.com/milk9111/robosim/ecs/system"
	"github.com/milk9111/robosim/physics"
	"github.com/milk9111/robosim/prefabs"
	"github.com/milk9111/robosim/robot"
)

var (
	ErrUnknownRobot = errors.New("sim: unknown robot")
	ErrSeatTaken    = errors.New("sim: player seat taken")
)

type Options struct {
	// Clock drives robot command timing. Nil uses the system clock.
	Clock common.Clock
	// TickRate is the number of physics steps per simulated second.
	TickRate int
	// OnEvent receives every event drained after a tick, outside the
	// simulation lock.
	OnEvent func(ecs.Event)
	// Output receives program print lines. Nil logs them.
	Output func(e ecs.Entity, line string)
}

// Simulation is safe for concurrent use. Lock order is the simulation lock,
// then the physics world lock.
type Simulation struct {
	mu sync.Mutex

	spec    prefabs.WorldSpec
	physics *physics.World
	world   *ecs.World
	sched   *ecs.Scheduler
	arena   ecs.Entity
	clock   common.Clock
	opts    Options

	tickRate int

	robots map[ecs.Entity]*robot.Robot
	runs   map[ecs.Entity]*run

	// players is read by robots delivering radio messages from program
	// goroutines, so it has its own lock.
	dirMu   sync.RWMutex
	players map[int]*robot.Robot
}

func New(spec prefabs.WorldSpec, opts Options) *Simulation {
	tickRate := opts.TickRate
	if tickRate <= 0 {
		tickRate = common.TickRate
	}
	clock := opts.Clock
	if clock == nil {
		clock = common.SystemClock{}
	}
	dt := 1 / float64(tickRate)

	s := &Simulation{
		spec:     spec,
		physics:  physics.NewWorld(PhysicsConfig(spec)),
		world:    ecs.NewWorld(),
		clock:    clock,
		opts:     opts,
		tickRate: tickRate,
		robots:   make(map[ecs.Entity]*robot.Robot),
		runs:     make(map[ecs.Entity]*run),
		players:  make(map[int]*robot.Robot),
	}
	s.sched = ecs.NewScheduler(
		system.NewPhysicsSystem(s.physics, dt),
		system.NewTransformSyncSystem(s.physics),
		system.NewArenaTimerSystem(dt),
	)

	s.arena = ecs.CreateEntity(s.world)
	_ = ecs.Add(s.world, s.arena, component.ArenaTagComponent.Kind(), &component.ArenaTag{})
	_ = ecs.Add(s.world, s.arena, component.ArenaTimerComponent.Kind(), newTimer(spec.Timer))

	log.Printf("sim: world %q %vx%v, %d Hz", spec.Name, spec.Width, spec.Length, tickRate)
	return s
}

func newTimer(t prefabs.TimerSpec) *component.ArenaTimer {
	return &component.ArenaTimer{
		Enabled:   t.Enabled,
		CountDown: t.CountDown,
		Seconds:   t.Seconds,
	}
}

func (s *Simulation) Physics() *physics.World { return s.physics }
func (s *Simulation) Spec() prefabs.WorldSpec { return s.spec }
func (s *Simulation) TickRate() int           { return s.tickRate }

// StartPose is where player's robot is placed: its arena seat, or the world
// start for robot.Single and seats the world does not define.
func (s *Simulation) StartPose(player int) robot.Pose {
	if player >= 0 && player < len(s.spec.ArenaStarts) {
		return robot.PoseFromStart(s.spec.ArenaStarts[player])
	}
	return robot.PoseFromStart(s.spec.Start)
}

// AddRobot assembles spec at the player's start pose.
func (s *Simulation) AddRobot(spec prefabs.RobotSpec, player int) (ecs.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if player != robot.Single {
		if _, taken := s.Lookup(player); taken {
			return 0, ErrSeatTaken
		}
	}

	r, err := robot.Load(s.physics, spec, s.StartPose(player), robot.Options{
		Player:    player,
		Clock:     s.clock,
		Directory: s,
	})
	if err != nil {
		return 0, err
	}

	e := ecs.CreateEntity(s.world)
	_ = ecs.Add(s.world, e, component.RobotComponent.Kind(), &component.RobotRef{Robot: r})
	_ = ecs.Add(s.world, e, component.PlayerComponent.Kind(), &component.Player{Number: player})
	s.robots[e] = r

	if player != robot.Single {
		s.dirMu.Lock()
		s.players[player] = r
		s.dirMu.Unlock()
	}
	log.Printf("sim: robot %s (%s) added as entity %s", r.Name(), seat(player), e)
	return e, nil
}

// RemoveRobot stops the robot's program and takes it out of the world.
func (s *Simulation) RemoveRobot(e ecs.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.robots[e]
	if !ok {
		return ErrUnknownRobot
	}
	s.stopProgramLocked(e)
	r.Destroy()

	delete(s.robots, e)
	ecs.DestroyEntity(s.world, e)

	s.dirMu.Lock()
	if s.players[r.Player()] == r {
		delete(s.players, r.Player())
	}
	s.dirMu.Unlock()
	log.Printf("sim: robot %s removed", r.Name())
	return nil
}

func (s *Simulation) Robot(e ecs.Entity) (*robot.Robot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.robots[e]
	return r, ok
}

// Robots returns the robot entities in creation order.
func (s *Simulation) Robots() []ecs.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.robotEntitiesLocked()
}

func (s *Simulation) robotEntitiesLocked() []ecs.Entity {
	out := make([]ecs.Entity, 0, len(s.robots))
	for e := range s.robots {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return uint32(out[i]) < uint32(out[j]) })
	return out
}

// Lookup resolves a player seat for radio delivery.
func (s *Simulation) Lookup(player int) (*robot.Robot, bool) {
	s.dirMu.RLock()
	defer s.dirMu.RUnlock()
	r, ok := s.players[player]
	return r, ok
}

// Tick runs the systems once and hands the drained events to OnEvent. A
// count-down timer running out stops every program and robot.
func (s *Simulation) Tick() {
	s.mu.Lock()
	events := s.sched.Tick(s.world)
	s.mu.Unlock()

	for _, evt := range events {
		if evt.Kind == ecs.EventTimerExpired {
			log.Printf("sim: arena timer expired")
			s.StopAll()
		}
		if s.opts.OnEvent != nil {
			s.opts.OnEvent(evt)
		}
	}
}

// Run ticks at TickRate of wall time until ctx ends.
func (s *Simulation) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Close stops every program and removes every robot.
func (s *Simulation) Close() {
	for _, e := range s.Robots() {
		_ = s.RemoveRobot(e)
	}
}

var _ robot.Directory = (*Simulation)(nil)

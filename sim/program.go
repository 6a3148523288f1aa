package sim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"
	"github.com/milk9111/robosim/arduino"
	"github.com/milk9111/robosim/car"
	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/ecs/component"
	"github.com/milk9111/robosim/prefabs"
	"github.com/milk9111/robosim/robot"
	"github.com/milk9111/robosim/script"
)

const (
	LangTengo   = "tengo"
	LangArduino = "arduino"
)

var ErrUnknownLang = errors.New("sim: unknown program language")

type run struct {
	id     string
	lang   string
	cancel context.CancelFunc
	done   chan struct{}
}

// RunProgram starts src on the robot, replacing any program already running
// there, and returns the run id. Tengo programs are compiled first so syntax
// errors come back here instead of from the run.
func (s *Simulation) RunProgram(e ecs.Entity, lang string, src []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.robots[e]
	if !ok {
		return "", ErrUnknownRobot
	}

	var exec func(ctx context.Context) error
	switch lang {
	case LangTengo:
		runner := script.NewRunner(car.New(r), script.Options{Output: s.output(e)})
		if err := runner.Compile(src); err != nil {
			return "", err
		}
		exec = func(ctx context.Context) error { return runner.Run(ctx, src) }
	case LangArduino:
		runner := arduino.NewRunner(car.New(r))
		exec = func(ctx context.Context) error { return runner.Run(ctx, string(src)) }
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLang, lang)
	}

	prev := s.runs[e]
	s.stopProgramLocked(e)

	ctx, cancel := context.WithCancel(context.Background())
	cur := &run{id: uuid.NewString(), lang: lang, cancel: cancel, done: make(chan struct{})}
	s.runs[e] = cur
	_ = ecs.Add(s.world, e, component.ProgramComponent.Kind(), &component.Program{
		RunID:   cur.id,
		Lang:    lang,
		Running: true,
	})
	log.Printf("sim: %s: run %s started (%s)", r.Name(), cur.id, lang)

	go func() {
		defer close(cur.done)
		// the replaced program may still be unwinding its last command
		if prev != nil {
			<-prev.done
		}
		err := exec(ctx)
		s.finishRun(e, cur, err)
	}()
	return cur.id, nil
}

// RunProgramFile loads a program prefab and runs it in the language its
// extension names.
func (s *Simulation) RunProgramFile(e ecs.Entity, name string) (string, error) {
	lang := prefabs.ProgramLang(name)
	if lang == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownLang, name)
	}
	src, err := prefabs.LoadScript(name)
	if err != nil {
		return "", err
	}
	return s.RunProgram(e, lang, src)
}

func (s *Simulation) finishRun(e ecs.Entity, cur *run, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs[e] != cur {
		return
	}
	delete(s.runs, e)

	prog, ok := ecs.Get(s.world, e, component.ProgramComponent.Kind())
	if !ok {
		return
	}
	prog.Running = false
	if err != nil && !errors.Is(err, context.Canceled) {
		prog.Err = err.Error()
		log.Printf("sim: run %s failed: %v", cur.id, err)
		return
	}
	log.Printf("sim: run %s finished", cur.id)
}

// Wait blocks until the program currently bound to e ends or ctx does.
func (s *Simulation) Wait(ctx context.Context, e ecs.Entity) error {
	s.mu.Lock()
	cur := s.runs[e]
	s.mu.Unlock()
	if cur == nil {
		return nil
	}
	select {
	case <-cur.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopProgram cancels the robot's program and hard-stops its queued commands.
func (s *Simulation) StopProgram(e ecs.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.robots[e]; !ok {
		return ErrUnknownRobot
	}
	s.stopProgramLocked(e)
	return nil
}

func (s *Simulation) stopProgramLocked(e ecs.Entity) {
	if cur := s.runs[e]; cur != nil {
		cur.cancel()
		delete(s.runs, e)
		if prog, ok := ecs.Get(s.world, e, component.ProgramComponent.Kind()); ok {
			prog.Running = false
		}
		log.Printf("sim: run %s stopped", cur.id)
	}
	if r := s.robots[e]; r != nil {
		r.Executor().StopAll()
	}
}

// StopAll stops every program and robot.
func (s *Simulation) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.robotEntitiesLocked() {
		s.stopProgramLocked(e)
	}
}

// Reset stops everything, returns each robot to its start pose with fresh
// actuators and empty mailboxes, and restarts the arena timer.
func (s *Simulation) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.robotEntitiesLocked() {
		s.stopProgramLocked(e)
		ecs.Remove(s.world, e, component.ProgramComponent.Kind())
	}

	lock := s.physics.Locker()
	lock.Lock()
	for _, r := range s.robots {
		r.Place(r.Start())
		r.Reset()
	}
	lock.Unlock()

	for _, r := range s.robots {
		r.RadioEmptyAll()
	}
	_ = ecs.Add(s.world, s.arena, component.ArenaTimerComponent.Kind(), newTimer(s.spec.Timer))
	log.Printf("sim: reset %d robot(s)", len(s.robots))
}

func (s *Simulation) output(e ecs.Entity) func(string) {
	if s.opts.Output == nil {
		return nil
	}
	return func(line string) { s.opts.Output(e, line) }
}

func seat(player int) string {
	if player == robot.Single {
		return "single"
	}
	return "player " + strconv.Itoa(player)
}

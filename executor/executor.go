// Package executor serializes timed robot commands. Each command runs its
// action and then waits out its duration before the next one starts.
package executor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/milk9111/robosim/common"
)

// ErrStopped is the result of every command abandoned by StopAll.
var ErrStopped = errors.New("executor: stopped")

// Command is one queued entry. It settles once its action has run and its
// duration has elapsed, or when the executor is stopped.
type Command struct {
	action   func()
	duration time.Duration

	once sync.Once
	done chan struct{}
	err  error
}

func newCommand(action func(), d time.Duration) *Command {
	return &Command{action: action, duration: d, done: make(chan struct{})}
}

// Done is closed when the command settles.
func (c *Command) Done() <-chan struct{} {
	return c.done
}

// Err is nil for a completed command and ErrStopped for an abandoned one.
// It is only meaningful after Done is closed.
func (c *Command) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the command settles or ctx is done.
func (c *Command) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Command) settle(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

type Options struct {
	// Name prefixes log lines.
	Name  string
	Clock common.Clock
	// Locker guards actions and OnStop against the physics tick.
	Locker sync.Locker
	// OnStop hard-stops the owned actuators.
	OnStop func()
}

// Executor is a per-robot FIFO of timed commands.
type Executor struct {
	name   string
	clock  common.Clock
	locker sync.Locker
	onStop func()

	mu      sync.Mutex
	queue   []*Command
	current *Command
	running bool
	gen     uint64
	cancel  chan struct{}
}

func New(opts Options) *Executor {
	clock := opts.Clock
	if clock == nil {
		clock = common.SystemClock{}
	}
	locker := opts.Locker
	if locker == nil {
		locker = &sync.Mutex{}
	}
	name := opts.Name
	if name == "" {
		name = "robot"
	}
	return &Executor{
		name:   name,
		clock:  clock,
		locker: locker,
		onStop: opts.OnStop,
		cancel: make(chan struct{}),
	}
}

// Enqueue appends a command and starts draining if the executor is idle.
func (e *Executor) Enqueue(action func(), d time.Duration) *Command {
	cmd := newCommand(action, d)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, cmd)
	if !e.running {
		e.running = true
		go e.drain(e.gen, e.cancel)
	}
	return cmd
}

// Len reports the number of commands waiting to start.
func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Running reports whether a drain is in progress.
func (e *Executor) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// StopAll discards the queue, hard-stops the actuators and settles every
// abandoned command with ErrStopped. The executor stays usable.
func (e *Executor) StopAll() {
	e.mu.Lock()
	abandoned := e.queue
	if e.current != nil {
		abandoned = append([]*Command{e.current}, abandoned...)
	}
	e.queue = nil
	e.current = nil
	e.running = false
	e.gen++
	close(e.cancel)
	e.cancel = make(chan struct{})
	e.mu.Unlock()

	if e.onStop != nil {
		e.locker.Lock()
		e.onStop()
		e.locker.Unlock()
	}

	for _, cmd := range abandoned {
		cmd.settle(ErrStopped)
	}
	if len(abandoned) > 0 {
		log.Printf("executor: %s: stopped, %d command(s) abandoned", e.name, len(abandoned))
	}
}

func (e *Executor) drain(gen uint64, cancel <-chan struct{}) {
	for {
		e.mu.Lock()
		if e.gen != gen {
			e.mu.Unlock()
			return
		}
		if len(e.queue) == 0 {
			e.running = false
			e.current = nil
			e.mu.Unlock()
			return
		}
		cmd := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.current = cmd
		e.mu.Unlock()

		e.execute(cmd, gen)

		if cmd.duration > 0 {
			select {
			case <-e.clock.After(cmd.duration):
			case <-cancel:
				return
			}
		}
		cmd.settle(nil)
	}
}

// execute runs the action under the locker unless StopAll has already
// superseded this drain.
func (e *Executor) execute(cmd *Command, gen uint64) {
	if cmd.action == nil {
		return
	}
	e.locker.Lock()
	defer e.locker.Unlock()

	e.mu.Lock()
	stale := e.gen != gen
	e.mu.Unlock()
	if stale {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("executor: %s: command action failed: %v", e.name, r)
		}
	}()
	cmd.action()
}

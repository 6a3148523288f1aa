// Package script runs tengo robot programs. Motion calls block the program
// until the queued command settles, so a program reads top to bottom the way
// the robot moves.
package script

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/robosim/car"
	"github.com/milk9111/robosim/executor"
	"github.com/milk9111/robosim/robot"
)

var ErrCompile = errors.New("script: compile failed")

type Options struct {
	// Name prefixes log lines. Defaults to the robot name.
	Name string
	// Output receives each print line. Nil logs it.
	Output func(line string)
}

// Runner executes programs against one car.
type Runner struct {
	car    *car.Control
	robot  *robot.Robot
	name   string
	output func(string)
}

func NewRunner(c *car.Control, opts Options) *Runner {
	name := opts.Name
	if name == "" {
		name = c.Robot().Name()
	}
	r := &Runner{car: c, robot: c.Robot(), name: name, output: opts.Output}
	if r.output == nil {
		r.output = func(line string) {
			log.Printf("script: %s: %s", name, line)
		}
	}
	return r
}

// Compile checks src without running it.
func (r *Runner) Compile(src []byte) error {
	_, err := r.compile(context.Background(), src, new(atomic.Bool))
	return err
}

// Run compiles and runs src. It returns executor.ErrStopped when the robot's
// commands were stopped underneath the program and ctx.Err() when ctx ends,
// in which case the robot's queue is stopped too.
func (r *Runner) Run(ctx context.Context, src []byte) error {
	stopped := new(atomic.Bool)
	compiled, err := r.compile(ctx, src, stopped)
	if err != nil {
		return err
	}

	err = compiled.RunContext(ctx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		r.car.StopAll()
		return ctx.Err()
	case stopped.Load():
		return executor.ErrStopped
	default:
		return fmt.Errorf("script: %s: %w", r.name, err)
	}
}

func (r *Runner) compile(ctx context.Context, src []byte, stopped *atomic.Bool) (*tengo.Compiled, error) {
	s := tengo.NewScript(src)
	s.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	for name, fn := range r.globals(ctx, stopped) {
		if err := s.Add(name, fn); err != nil {
			return nil, fmt.Errorf("script: add %s: %w", name, err)
		}
	}
	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	return compiled, nil
}

func (r *Runner) globals(ctx context.Context, stopped *atomic.Bool) map[string]*tengo.UserFunction {
	// await issues a command and blocks until it settles. Nothing is queued
	// once ctx is done, and a command that slipped in as ctx ended is
	// discarded with the rest of the queue.
	await := func(issue func() *executor.Command) (tengo.Object, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := issue().Wait(ctx)
		if errors.Is(err, executor.ErrStopped) {
			stopped.Store(true)
		}
		if err != nil {
			if ctx.Err() != nil {
				r.car.StopAll()
			}
			return nil, err
		}
		return tengo.UndefinedValue, nil
	}
	timed := func(name string, move func(speed float64, ms int) *executor.Command) *tengo.UserFunction {
		return &tengo.UserFunction{Name: name, Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			speed, err := floatArg(args, 0, "speed")
			if err != nil {
				return nil, err
			}
			ms, err := intArg(args, 1, "duration")
			if err != nil {
				return nil, err
			}
			return await(func() *executor.Command { return move(speed, ms) })
		}}
	}
	nullary := func(name string, cmd func() *executor.Command) *tengo.UserFunction {
		return &tengo.UserFunction{Name: name, Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 0 {
				return nil, tengo.ErrWrongNumArguments
			}
			return await(cmd)
		}}
	}
	reading := func(name string, read func() float64) *tengo.UserFunction {
		return &tengo.UserFunction{Name: name, Value: func(args ...tengo.Object) (tengo.Object, error) {
			return &tengo.Float{Value: read()}, nil
		}}
	}
	wait := func(name string) *tengo.UserFunction {
		return &tengo.UserFunction{Name: name, Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			ms, err := intArg(args, 0, "ms")
			if err != nil {
				return nil, err
			}
			return await(func() *executor.Command { return r.car.Wait(ms) })
		}}
	}

	c := r.car
	return map[string]*tengo.UserFunction{
		"moveForward":  timed("moveForward", c.MoveForward),
		"moveBackward": timed("moveBackward", c.MoveBackward),
		"turnLeft":     timed("turnLeft", c.TurnLeft),
		"turnRight":    timed("turnRight", c.TurnRight),
		"stopMotors":   nullary("stopMotors", c.StopMotors),
		"lookLeft":     nullary("lookLeft", c.LookLeft),
		"lookRight":    nullary("lookRight", c.LookRight),
		"lookCenter":   nullary("lookCenter", c.LookCenter),
		"openClaw":     nullary("openClaw", c.OpenClaw),
		"closeClaw":    nullary("closeClaw", c.CloseClaw),
		"wait":         wait("wait"),
		"delay":        wait("delay"),

		"followLine": {Name: "followLine", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			speed, err := floatArg(args, 0, "speed")
			if err != nil {
				return nil, err
			}
			return await(func() *executor.Command { return c.FollowLine(speed) })
		}},
		"beep": {Name: "beep", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			freq, err := floatArg(args, 0, "frequency")
			if err != nil {
				return nil, err
			}
			ms, err := intArg(args, 1, "duration")
			if err != nil {
				return nil, err
			}
			return await(func() *executor.Command { return c.Beep(freq, ms) })
		}},
		"setRGB": {Name: "setRGB", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 3 {
				return nil, tengo.ErrWrongNumArguments
			}
			var rgb [3]int
			for i, name := range []string{"red", "green", "blue"} {
				v, err := intArg(args, i, name)
				if err != nil {
					return nil, err
				}
				rgb[i] = v
			}
			return await(func() *executor.Command { return c.SetRGB(rgb[0], rgb[1], rgb[2]) })
		}},

		"getDistance":         reading("getDistance", c.GetDistance),
		"getLineSensorLeft":   reading("getLineSensorLeft", c.GetLineSensorLeft),
		"getLineSensorMiddle": reading("getLineSensorMiddle", c.GetLineSensorMiddle),
		"getLineSensorRight":  reading("getLineSensorRight", c.GetLineSensorRight),
		"getBatteryLevel":     reading("getBatteryLevel", c.GetBatteryLevel),

		"radioSend": {Name: "radioSend", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 3 {
				return nil, tengo.ErrWrongNumArguments
			}
			dest, err := destinationArg(args[0])
			if err != nil {
				return nil, err
			}
			n := r.robot.RadioSend(dest, objectAsString(args[1]), objectToAny(args[2]))
			return &tengo.Int{Value: int64(n)}, nil
		}},
		"radioRead": {Name: "radioRead", Value: func(args ...tengo.Object) (tengo.Object, error) {
			m, ok := r.robot.RadioRead(mailboxArg(args))
			if !ok {
				return tengo.UndefinedValue, nil
			}
			return tengo.FromInterface([]any{m.Value, m.Sender})
		}},
		"radioAvailable": {Name: "radioAvailable", Value: func(args ...tengo.Object) (tengo.Object, error) {
			return &tengo.Int{Value: int64(r.robot.RadioAvailable(mailboxArg(args)))}, nil
		}},
		"hubButton": {Name: "hubButton", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			if r.robot.HubButton(objectAsString(args[0])) {
				return tengo.TrueValue, nil
			}
			return tengo.FalseValue, nil
		}},
		"print": {Name: "print", Value: func(args ...tengo.Object) (tengo.Object, error) {
			parts := make([]string, 0, len(args))
			for _, a := range args {
				parts = append(parts, objectAsString(a))
			}
			r.output(strings.Join(parts, " "))
			return tengo.UndefinedValue, nil
		}},
	}
}

func floatArg(args []tengo.Object, i int, name string) (float64, error) {
	v, ok := tengo.ToFloat64(args[i])
	if !ok {
		return 0, tengo.ErrInvalidArgumentType{Name: name, Expected: "float", Found: args[i].TypeName()}
	}
	return v, nil
}

func intArg(args []tengo.Object, i int, name string) (int, error) {
	v, ok := tengo.ToInt(args[i])
	if !ok {
		return 0, tengo.ErrInvalidArgumentType{Name: name, Expected: "int", Found: args[i].TypeName()}
	}
	return v, nil
}

func mailboxArg(args []tengo.Object) string {
	if len(args) == 0 {
		return ""
	}
	return objectAsString(args[0])
}

func destinationArg(obj tengo.Object) (robot.Destination, error) {
	switch v := obj.(type) {
	case *tengo.Int:
		return robot.ToPlayers(int(v.Value)), nil
	case *tengo.Array:
		players := make([]int, 0, len(v.Value))
		for _, item := range v.Value {
			n, ok := tengo.ToInt(item)
			if !ok {
				return robot.Destination{}, tengo.ErrInvalidArgumentType{Name: "destination", Expected: "int", Found: item.TypeName()}
			}
			players = append(players, n)
		}
		return robot.ToPlayers(players...), nil
	default:
		return robot.ParseDestination(objectAsString(obj))
	}
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return int(v.Value)
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return v.String()
	}
}

package script

import (
	"context"
	"errors"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/milk9111/robosim/actuator"
	"github.com/milk9111/robosim/car"
	"github.com/milk9111/robosim/executor"
	"github.com/milk9111/robosim/physics"
	"github.com/milk9111/robosim/prefabs"
	"github.com/milk9111/robosim/robot"
)

type outputLog struct {
	mu    sync.Mutex
	lines []string
}

func (o *outputLog) write(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, line)
}

func (o *outputLog) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.lines...)
}

type directory map[int]*robot.Robot

func (d directory) Lookup(player int) (*robot.Robot, bool) {
	r, ok := d[player]
	return r, ok
}

func testRobotSpec() prefabs.RobotSpec {
	return prefabs.RobotSpec{
		Name:   "scripted",
		Wheels: true,
		Body:   prefabs.BodySpec{Width: 12, Length: 15, Mass: 1},
		Wheel:  prefabs.WheelSpec{Diameter: 5.6, Width: 0.8, Mass: 0.05, Friction: 1},
		Components: []prefabs.ComponentSpec{
			{Type: robot.TypeUltrasonicSensor, Port: "in2", Position: prefabs.Vec3{0, 0, 7.5}},
		},
	}
}

func newTestRunner(t *testing.T, dir directory, player int) (*Runner, *robot.Robot, *outputLog) {
	t.Helper()
	world := physics.NewWorld(physics.Config{
		Width:       200,
		Length:      200,
		Walls:       true,
		GroundColor: color.RGBA{R: 255, G: 255, B: 255, A: 255},
	})
	r, err := robot.Load(world, testRobotSpec(), robot.Pose{}, robot.Options{Player: player, Directory: dir})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if dir != nil {
		dir[player] = r
	}
	out := &outputLog{}
	return NewRunner(car.New(r), Options{Output: out.write}), r, out
}

func run(t *testing.T, runner *Runner, src string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return runner.Run(ctx, []byte(src))
}

func TestRunMovesInOrder(t *testing.T) {
	runner, r, out := newTestRunner(t, nil, robot.Single)
	src := `
moveForward(100, 20)
turnLeft(50, 20)
print("done", getBatteryLevel())
`
	start := time.Now()
	if err := run(t, runner, src); err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("program finished in %v, want at least the 40ms of motion", elapsed)
	}

	left, right := r.LeftWheel(), r.RightWheel()
	if left.SpeedSetpoint() != -200 || right.SpeedSetpoint() != 200 {
		t.Fatalf("speeds = %v, %v, want the turn's -200, 200", left.SpeedSetpoint(), right.SpeedSetpoint())
	}
	if left.Mode() != actuator.ModeRunTimed {
		t.Fatalf("mode = %v, want run-timed", left.Mode())
	}
	if got := out.all(); len(got) != 1 || got[0] != "done 100" {
		t.Fatalf("output = %q", got)
	}
}

func TestRunSensorsAndButtons(t *testing.T) {
	runner, r, out := newTestRunner(t, nil, robot.Single)
	if err := r.SetHubButton("enter", true); err != nil {
		t.Fatal(err)
	}
	src := `
print(getDistance() > 50, getDistance() < 100)
print(hubButton("enter"), hubButton("up"))
print(getLineSensorLeft())
`
	if err := run(t, runner, src); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"true true", "true false", "0"}
	got := out.all()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestRunRadio(t *testing.T) {
	dir := directory{}
	sender, _, _ := newTestRunner(t, dir, 0)
	receiver, _, out := newTestRunner(t, dir, 1)

	if err := run(t, sender, `radioSend("team", "box", 7)`); err != nil {
		t.Fatalf("send: %v", err)
	}
	src := `
print(radioAvailable("box"))
m := radioRead("box")
print(m[0], m[1])
print(is_undefined(radioRead("box")))
`
	if err := run(t, receiver, src); err != nil {
		t.Fatalf("receive: %v", err)
	}
	want := []string{"1", "7 0", "true"}
	if got := out.all(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		compile bool
	}{
		{name: "syntax", src: "moveForward(", compile: true},
		{name: "undefined", src: "fly(1)", compile: true},
		{name: "arity", src: "moveForward(1)"},
		{name: "argument type", src: `wait("soon")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, _, _ := newTestRunner(t, nil, robot.Single)
			err := run(t, runner, tt.src)
			if err == nil {
				t.Fatal("run succeeded")
			}
			if got := errors.Is(err, ErrCompile); got != tt.compile {
				t.Fatalf("err = %v, compile error = %v, want %v", err, got, tt.compile)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	runner, _, _ := newTestRunner(t, nil, robot.Single)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := runner.Run(ctx, []byte("wait(10000)"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("cancel did not interrupt the wait")
	}
}

func TestRunStoppedUnderneath(t *testing.T) {
	runner, r, out := newTestRunner(t, nil, robot.Single)
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for !r.Executor().Running() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		r.Executor().StopAll()
	}()
	err := run(t, runner, "moveForward(100, 10000)\nprint(\"unreachable\")")
	if !errors.Is(err, executor.ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
	if len(out.all()) != 0 {
		t.Fatalf("program kept running after stop: %q", out.all())
	}
}

func TestRunCancelledBeforeMoveQueuesNothing(t *testing.T) {
	_, r, _ := newTestRunner(t, nil, robot.Single)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the program is stopped from inside, right before its next move
	runner := NewRunner(car.New(r), Options{Output: func(string) {
		cancel()
		r.Executor().StopAll()
	}})

	err := runner.Run(ctx, []byte("print(\"stop\")\nmoveForward(100, 10000)"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	time.Sleep(20 * time.Millisecond)
	lock := r.World().Locker()
	lock.Lock()
	defer lock.Unlock()
	if r.Executor().Running() || r.Executor().Len() != 0 {
		t.Fatalf("executor running = %v, queue = %d after cancel", r.Executor().Running(), r.Executor().Len())
	}
	if mode := r.LeftWheel().Mode(); mode != actuator.ModeStopped {
		t.Fatalf("left wheel mode = %v, want stopped", mode)
	}
}

func TestSamplePrograms(t *testing.T) {
	for _, name := range prefabs.List("scripts") {
		if !strings.HasSuffix(name, ".tengo") {
			continue
		}
		t.Run(name, func(t *testing.T) {
			src, err := prefabs.LoadScript(name)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			runner, _, _ := newTestRunner(t, nil, robot.Single)
			if err := runner.Compile(src); err != nil {
				t.Fatalf("compile: %v", err)
			}
		})
	}
}

package physics

import (
	"image/color"
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/robosim/common"
)

func testConfig() Config {
	return Config{
		Width:          200,
		Length:         200,
		Walls:          true,
		WallThickness:  4,
		WallFriction:   0.1,
		GroundFriction: 1,
		GroundColor:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Lines: []Line{
			{A: cp.Vector{X: -50, Y: 0}, B: cp.Vector{X: 50, Y: 0}, Width: 4, Color: color.RGBA{A: 255}},
		},
		Patches: []Patch{
			{Min: cp.Vector{X: 60, Y: 60}, Max: cp.Vector{X: 80, Y: 80}, Color: color.RGBA{R: 255, A: 255}},
		},
	}
}

func TestBeforeStepHooks(t *testing.T) {
	w := NewWorld(testConfig())
	var calls []string

	removeA := w.BeforeStep(func(dt float64) { calls = append(calls, "a") })
	w.BeforeStep(func(dt float64) { calls = append(calls, "b") })

	w.Step(common.TickSeconds)
	removeA()
	removeA()
	w.Step(common.TickSeconds)

	want := []string{"a", "b", "b"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
	if w.Steps() != 2 {
		t.Fatalf("steps = %d, want 2", w.Steps())
	}
	if math.Abs(w.Elapsed()-2*common.TickSeconds) > 1e-12 {
		t.Fatalf("elapsed = %v", w.Elapsed())
	}
}

func TestGroundColorAt(t *testing.T) {
	w := NewWorld(testConfig())
	tests := []struct {
		name string
		at   cp.Vector
		want color.RGBA
	}{
		{name: "on line", at: cp.Vector{X: 10, Y: 1}, want: color.RGBA{A: 255}},
		{name: "beside line", at: cp.Vector{X: 10, Y: 10}, want: color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{name: "on patch", at: cp.Vector{X: 70, Y: 70}, want: color.RGBA{R: 255, A: 255}},
		{name: "off the floor", at: cp.Vector{X: 500, Y: 0}, want: color.RGBA{A: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.GroundColorAt(tt.at); got != tt.want {
				t.Fatalf("color = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRaycastHitsWallAndSkipsOwnGroup(t *testing.T) {
	w := NewWorld(testConfig())
	body := w.NewBoxBody(Impostor{Mass: 1, Friction: 1}, 10, 10, cp.Vector{}, 0)
	g := w.NewGroup()
	body.SetGroup(g)

	got := w.Raycast(cp.Vector{}, cp.Vector{X: 0, Y: 1}, 255, g)
	if math.Abs(got-100) > 0.5 {
		t.Fatalf("distance = %v, want ~100 to the wall", got)
	}

	got = w.Raycast(cp.Vector{Y: -50}, cp.Vector{X: 0, Y: 1}, 255, 0)
	if math.Abs(got-45) > 0.5 {
		t.Fatalf("distance = %v, want ~45 to the box", got)
	}

	if got := w.Raycast(cp.Vector{}, cp.Vector{X: 0, Y: 1}, 20, g); got != 20 {
		t.Fatalf("distance = %v, want max range 20", got)
	}
}

func newTestCar(t *testing.T, w *World) (*Body, *HingeMotor, *HingeMotor) {
	t.Helper()
	chassis := w.NewBoxBody(Impostor{Mass: 1, Friction: 0.5}, 10, 15, cp.Vector{}, 0)
	wheel := Impostor{Mass: 0.05, Friction: 1}
	load := chassis.Mass() * common.Gravity / 2
	left := w.NewHingeMotor(chassis, HingeSpec{Mount: cp.Vector{X: -6.5}, Radius: 3, Impostor: wheel, Load: load})
	right := w.NewHingeMotor(chassis, HingeSpec{Mount: cp.Vector{X: 6.5}, Radius: 3, Impostor: wheel, Load: load})
	return chassis, left, right
}

func TestHingeMotorsDriveStraight(t *testing.T) {
	w := NewWorld(testConfig())
	chassis, left, right := newTestCar(t, w)

	left.SetMotor(2*math.Pi, 30000)
	right.SetMotor(2*math.Pi, 30000)
	for i := 0; i < common.TickRate; i++ {
		w.Step(common.TickSeconds)
	}

	pos := chassis.Position()
	if math.Abs(pos.Y) < 2 {
		t.Fatalf("chassis barely moved: %v", pos)
	}
	if math.Abs(pos.X) > 0.5 {
		t.Fatalf("chassis drifted sideways: %v", pos)
	}
	if math.Abs(chassis.Angle()) > 0.05 {
		t.Fatalf("chassis turned while driving straight: %v", chassis.Angle())
	}
	if math.Abs(math.Abs(left.Rate())-2*math.Pi) > 0.5 {
		t.Fatalf("wheel rate = %v, want ~2pi", left.Rate())
	}
}

func TestHingeMotorsSpinInPlace(t *testing.T) {
	w := NewWorld(testConfig())
	chassis, left, right := newTestCar(t, w)

	left.SetMotor(-2*math.Pi, 30000)
	right.SetMotor(2*math.Pi, 30000)
	for i := 0; i < common.TickRate; i++ {
		w.Step(common.TickSeconds)
	}

	if math.Abs(chassis.Angle()) < 0.1 {
		t.Fatalf("chassis angle = %v, want a turn", chassis.Angle())
	}
	if d := chassis.Position().Length(); d > 1 {
		t.Fatalf("chassis moved %v while spinning in place", d)
	}
}

func TestRemoveHingeStopsTraction(t *testing.T) {
	w := NewWorld(testConfig())
	chassis, left, right := newTestCar(t, w)
	w.RemoveHinge(left)
	w.RemoveHinge(right)

	w.Step(common.TickSeconds)
	if v := chassis.Velocity().Length(); v != 0 {
		t.Fatalf("velocity = %v, want 0 with no wheels", v)
	}
}

func TestCircleAddedAfterMarkCountsBumps(t *testing.T) {
	w := NewWorld(testConfig())
	body := w.NewBoxBody(Impostor{Mass: 1}, 10, 10, cp.Vector{Y: 80}, 0)
	body.MarkRobot()
	// only the caster reaches the wall
	body.AddCircle(Impostor{Mass: 0.1}, 3, cp.Vector{Y: 8})
	body.CP().SetVelocity(0, 60)

	for i := 0; i < common.TickRate; i++ {
		w.Step(common.TickSeconds)
	}
	if got := w.Bumps(body); got == 0 {
		t.Fatalf("bumps = %d, want the caster's wall contact counted", got)
	}
	if top := body.Position().Y + 5; top >= 100 {
		t.Fatalf("box top at %v, want it short of the wall", top)
	}
}

func TestPaintDoesNotBlockBodies(t *testing.T) {
	w := NewWorld(testConfig())
	body := w.NewBoxBody(Impostor{Mass: 1}, 6, 6, cp.Vector{X: 10, Y: -20}, 0)
	body.MarkRobot()
	body.CP().SetVelocity(0, 30)

	for i := 0; i < common.TickRate; i++ {
		w.Step(common.TickSeconds)
	}
	if y := body.Position().Y; math.Abs(y-10) > 0.5 {
		t.Fatalf("y = %v, want ~10 after crossing the line", y)
	}
	if got := w.Bumps(body); got != 0 {
		t.Fatalf("bumps = %d, paint counted as contact", got)
	}
	if got := w.GroundColorAt(cp.Vector{X: 10, Y: 0}); got != (color.RGBA{A: 255}) {
		t.Fatalf("line color = %v, want black", got)
	}
}

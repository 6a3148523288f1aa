package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/milk9111/robosim/common"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	mu    sync.Mutex
	order []int
	at    []time.Time
}

func (r *recorder) action(clock common.Clock, id int) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, id)
		r.at = append(r.at, clock.Now())
	}
}

func (r *recorder) snapshot() ([]int, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.order...), append([]time.Time(nil), r.at...)
}

func waitCommand(t *testing.T, cmd *Command) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := cmd.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("timed out waiting for command")
	}
	return err
}

func blockUntilWaiting(t *testing.T, clock *common.ManualClock, n int) {
	t.Helper()
	if !clock.BlockUntil(n, 2*time.Second) {
		t.Fatalf("executor never started waiting (waiters=%d)", clock.Waiters())
	}
}

func TestEnqueueRunsInOrderAfterEachWait(t *testing.T) {
	clock := common.NewManualClock(epoch)
	e := New(Options{Clock: clock})
	rec := &recorder{}

	durations := []time.Duration{100 * time.Millisecond, 250 * time.Millisecond, 50 * time.Millisecond}
	cmds := make([]*Command, len(durations))
	for i, d := range durations {
		cmds[i] = e.Enqueue(rec.action(clock, i), d)
	}

	for i, d := range durations {
		blockUntilWaiting(t, clock, 1)
		order, _ := rec.snapshot()
		if len(order) != i+1 {
			t.Fatalf("after %d waits, %d actions ran", i, len(order))
		}
		select {
		case <-cmds[i].Done():
			t.Fatalf("command %d settled before its duration elapsed", i)
		default:
		}
		clock.Advance(d)
		if err := waitCommand(t, cmds[i]); err != nil {
			t.Fatalf("command %d: %v", i, err)
		}
	}

	order, at := rec.snapshot()
	for i, id := range order {
		if id != i {
			t.Fatalf("order = %v, want 0,1,2", order)
		}
	}
	for i := 1; i < len(at); i++ {
		if gap := at[i].Sub(at[i-1]); gap < durations[i-1] {
			t.Fatalf("command %d started %v after the previous one, want >= %v", i, gap, durations[i-1])
		}
	}
}

func TestZeroDurationDoesNotWait(t *testing.T) {
	e := New(Options{Clock: common.NewManualClock(epoch)})
	ran := false
	cmd := e.Enqueue(func() { ran = true }, 0)
	if err := waitCommand(t, cmd); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !ran {
		t.Fatal("action did not run")
	}
}

func TestTimedMoveScenario(t *testing.T) {
	clock := common.NewManualClock(epoch)
	var locker sync.Mutex
	e := New(Options{Clock: clock, Locker: &locker})

	left := 0.0
	var starts []time.Time
	first := e.Enqueue(func() {
		left = 100
		starts = append(starts, clock.Now())
	}, 500*time.Millisecond)
	second := e.Enqueue(func() {
		left = 0
		starts = append(starts, clock.Now())
	}, 0)

	blockUntilWaiting(t, clock, 1)
	locker.Lock()
	if left != 100 {
		locker.Unlock()
		t.Fatalf("left = %v during first command, want 100", left)
	}
	locker.Unlock()

	clock.Advance(500*time.Millisecond + time.Millisecond)
	if err := waitCommand(t, first); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := waitCommand(t, second); err != nil {
		t.Fatalf("second: %v", err)
	}

	locker.Lock()
	defer locker.Unlock()
	if left != 0 {
		t.Fatalf("left = %v, want 0 from the second command", left)
	}
	if len(starts) != 2 || starts[1].Sub(starts[0]) < 500*time.Millisecond {
		t.Fatalf("starts = %v, want second >= 500ms after first", starts)
	}
}

func TestPanickingActionStillWaits(t *testing.T) {
	clock := common.NewManualClock(epoch)
	e := New(Options{Clock: clock})
	rec := &recorder{}

	bad := e.Enqueue(func() { panic("malformed command") }, 200*time.Millisecond)
	next := e.Enqueue(rec.action(clock, 1), 0)

	blockUntilWaiting(t, clock, 1)
	if order, _ := rec.snapshot(); len(order) != 0 {
		t.Fatalf("next command ran before the failed command's wait: %v", order)
	}

	clock.Advance(200 * time.Millisecond)
	if err := waitCommand(t, bad); err != nil {
		t.Fatalf("failed command settled with %v, want nil", err)
	}
	if err := waitCommand(t, next); err != nil {
		t.Fatalf("next: %v", err)
	}
	if order, _ := rec.snapshot(); len(order) != 1 {
		t.Fatalf("order = %v, want the next command to run", order)
	}
}

func TestStopAllDrainsQueue(t *testing.T) {
	clock := common.NewManualClock(epoch)
	stops := 0
	e := New(Options{Clock: clock, OnStop: func() { stops++ }})
	rec := &recorder{}

	cmds := []*Command{
		e.Enqueue(rec.action(clock, 0), time.Minute),
		e.Enqueue(rec.action(clock, 1), time.Minute),
		e.Enqueue(rec.action(clock, 2), time.Minute),
	}
	blockUntilWaiting(t, clock, 1)

	e.StopAll()

	if e.Len() != 0 {
		t.Fatalf("queue length = %d, want 0", e.Len())
	}
	if e.Running() {
		t.Fatal("executor still running after StopAll")
	}
	if stops != 1 {
		t.Fatalf("OnStop called %d times, want 1", stops)
	}
	for i, cmd := range cmds {
		if err := waitCommand(t, cmd); !errors.Is(err, ErrStopped) {
			t.Fatalf("command %d settled with %v, want ErrStopped", i, err)
		}
	}

	clock.Advance(time.Hour)
	if order, _ := rec.snapshot(); len(order) != 1 {
		t.Fatalf("actions after stop = %v, want only the first", order)
	}
}

func TestExecutorUsableAfterStopAll(t *testing.T) {
	clock := common.NewManualClock(epoch)
	e := New(Options{Clock: clock})

	e.Enqueue(func() {}, time.Minute)
	blockUntilWaiting(t, clock, 1)
	e.StopAll()

	ran := false
	cmd := e.Enqueue(func() { ran = true }, 0)
	if err := waitCommand(t, cmd); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !ran {
		t.Fatal("action did not run after StopAll")
	}
}

func TestCommandWaitHonoursContext(t *testing.T) {
	clock := common.NewManualClock(epoch)
	e := New(Options{Clock: clock})
	cmd := e.Enqueue(func() {}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := cmd.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("wait = %v, want context.Canceled", err)
	}
	if cmd.Err() != nil {
		t.Fatalf("unsettled command Err = %v, want nil", cmd.Err())
	}
	e.StopAll()
}

func TestExecutorsAreIndependent(t *testing.T) {
	clock := common.NewManualClock(epoch)
	a := New(Options{Name: "a", Clock: clock})
	b := New(Options{Name: "b", Clock: clock})

	a.Enqueue(func() {}, time.Minute)
	blockUntilWaiting(t, clock, 1)

	cmd := b.Enqueue(func() {}, 0)
	if err := waitCommand(t, cmd); err != nil {
		t.Fatalf("b blocked behind a: %v", err)
	}
	a.StopAll()
}

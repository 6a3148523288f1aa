// Package arduino runs the Arduino-style sketches emitted by the block editor.
// Only the car motion calls and delay are understood; every other line is
// ignored.
package arduino

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/milk9111/robosim/car"
	"github.com/milk9111/robosim/executor"
)

type Op string

const (
	OpMoveForward  Op = "moveForward"
	OpMoveBackward Op = "moveBackward"
	OpTurnLeft     Op = "turnLeft"
	OpTurnRight    Op = "turnRight"
	OpStopMotors   Op = "stopMotors"
	OpDelay        Op = "delay"
)

// Statement is one recognised call. Line is 1-based.
type Statement struct {
	Op       Op
	Speed    int
	Duration int
	Line     int
}

func (s Statement) String() string {
	switch s.Op {
	case OpStopMotors:
		return "stopMotors()"
	case OpDelay:
		return fmt.Sprintf("delay(%d)", s.Duration)
	default:
		return fmt.Sprintf("%s(%d, %d)", s.Op, s.Speed, s.Duration)
	}
}

var (
	moveOps = []Op{OpMoveForward, OpMoveBackward, OpTurnLeft, OpTurnRight}
	movePat = map[Op]*regexp.Regexp{}
	delayRe = regexp.MustCompile(`delay\s*\(\s*(\d+)\s*\)`)
)

func init() {
	for _, op := range moveOps {
		movePat[op] = regexp.MustCompile(string(op) + `\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)`)
	}
}

// Parse scans code line by line. The first call name found on a line decides
// how it is read, in the order moveForward, moveBackward, turnLeft, turnRight,
// stopMotors, delay; a line whose arguments do not match is dropped.
func Parse(code string) []Statement {
	var out []Statement
	for i, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if st, ok := parseLine(trimmed); ok {
			st.Line = i + 1
			out = append(out, st)
		}
	}
	return out
}

func parseLine(line string) (Statement, bool) {
	for _, op := range moveOps {
		if !strings.Contains(line, string(op)) {
			continue
		}
		m := movePat[op].FindStringSubmatch(line)
		if m == nil {
			return Statement{}, false
		}
		return Statement{Op: op, Speed: atoi(m[1]), Duration: atoi(m[2])}, true
	}
	if strings.Contains(line, string(OpStopMotors)) {
		return Statement{Op: OpStopMotors}, true
	}
	if strings.Contains(line, string(OpDelay)) {
		m := delayRe.FindStringSubmatch(line)
		if m == nil {
			return Statement{}, false
		}
		return Statement{Op: OpDelay, Duration: atoi(m[1])}, true
	}
	return Statement{}, false
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		// digits only, so this is overflow
		return int(^uint(0) >> 1)
	}
	return n
}

// Runner executes sketches on one car, one statement at a time.
type Runner struct {
	car *car.Control
}

func NewRunner(c *car.Control) *Runner {
	return &Runner{car: c}
}

// Run executes code in order and holds both wheels when it returns, also on
// error or cancellation.
func (r *Runner) Run(ctx context.Context, code string) error {
	defer r.car.HoldWheels()

	statements := Parse(code)
	log.Printf("arduino: %s: running %d statement(s)", r.car.Robot().Name(), len(statements))
	for _, st := range statements {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.exec(ctx, st); err != nil {
			if ctx.Err() != nil {
				r.car.StopAll()
			}
			return fmt.Errorf("arduino: line %d %s: %w", st.Line, st, err)
		}
	}
	return nil
}

func (r *Runner) exec(ctx context.Context, st Statement) error {
	var cmd *executor.Command
	speed := float64(st.Speed)
	switch st.Op {
	case OpMoveForward:
		cmd = r.car.MoveForward(speed, st.Duration)
	case OpMoveBackward:
		cmd = r.car.MoveBackward(speed, st.Duration)
	case OpTurnLeft:
		cmd = r.car.TurnLeft(speed, st.Duration)
	case OpTurnRight:
		cmd = r.car.TurnRight(speed, st.Duration)
	case OpStopMotors:
		cmd = r.car.StopMotors()
	case OpDelay:
		cmd = r.car.Wait(st.Duration)
	default:
		return nil
	}
	return cmd.Wait(ctx)
}

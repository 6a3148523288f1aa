// Package car is the motion and sensor API user programs drive a robot with.
// Motion calls are queued on the robot's executor and return the command,
// which settles once the motion's duration has passed.
package car

import (
	"image/color"
	"log"
	"sync"
	"time"

	"github.com/milk9111/robosim/actuator"
	"github.com/milk9111/robosim/common"
	"github.com/milk9111/robosim/executor"
	"github.com/milk9111/robosim/robot"
)

const (
	// SpeedScale maps the 0..255 program speed onto wheel deg/s.
	SpeedScale = 4.0

	FollowLineInterval = 100 * time.Millisecond
	LookDuration       = 500 * time.Millisecond
	ClawDuration       = 500 * time.Millisecond
	ClawSpeed          = 200.0

	// FollowLineThreshold is the reflected intensity below which the sensor
	// is taken to be on the line.
	FollowLineThreshold = 30.0

	BatteryLevel = 100.0

	linePort     = "in1"
	distancePort = "in2"
	clawPort     = "outC"
)

type intensityReader interface {
	ReflectedLightIntensity() float64
}

type rgbReader interface {
	RGB() [3]float64
}

type distanceReader interface {
	Distance() float64
}

// Control drives one robot. It is safe for use from the program goroutine
// while the simulation steps.
type Control struct {
	robot  *robot.Robot
	exec   *executor.Executor
	clock  common.Clock
	locker sync.Locker
}

func New(r *robot.Robot) *Control {
	return &Control{
		robot:  r,
		exec:   r.Executor(),
		clock:  r.Clock(),
		locker: r.World().Locker(),
	}
}

func (c *Control) Robot() *robot.Robot {
	return c.robot
}

func ms(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Millisecond
}

func (c *Control) MoveForward(speed float64, duration int) *executor.Command {
	return c.timedMove("moveForward", speed, speed, duration)
}

func (c *Control) MoveBackward(speed float64, duration int) *executor.Command {
	return c.timedMove("moveBackward", -speed, -speed, duration)
}

func (c *Control) TurnLeft(speed float64, duration int) *executor.Command {
	return c.timedMove("turnLeft", -speed, speed, duration)
}

func (c *Control) TurnRight(speed float64, duration int) *executor.Command {
	return c.timedMove("turnRight", speed, -speed, duration)
}

func (c *Control) timedMove(name string, left, right float64, duration int) *executor.Command {
	d := ms(duration)
	return c.exec.Enqueue(func() {
		log.Printf("car: %s: %s left=%v right=%v for %dms", c.robot.Name(), name, left, right, duration)
		target := c.clock.Now().Add(d)
		c.eachSide(left, right, func(a actuator.Actuator, speed float64) {
			a.SetStopAction(actuator.StopHold)
			a.SetSpeedSetpoint(speed * SpeedScale)
			a.SetTimeSetpoint(d.Seconds())
			a.SetTimeTarget(target)
			a.RunTimed()
		})
	}, d)
}

func (c *Control) eachSide(left, right float64, fn func(a actuator.Actuator, speed float64)) {
	if a := c.robot.LeftWheel(); a != nil {
		fn(a, left)
	}
	if a := c.robot.RightWheel(); a != nil {
		fn(a, right)
	}
}

func (c *Control) StopMotors() *executor.Command {
	return c.exec.Enqueue(func() {
		c.eachSide(0, 0, func(a actuator.Actuator, _ float64) {
			a.SetStopAction(actuator.StopHold)
			a.Stop()
		})
	}, 0)
}

// Wait queues a pause of duration milliseconds.
func (c *Control) Wait(duration int) *executor.Command {
	return c.exec.Enqueue(nil, ms(duration))
}

// FollowLine takes one 100 ms line-following step from the colour sensor on in1.
func (c *Control) FollowLine(speed float64) *executor.Command {
	return c.exec.Enqueue(func() {
		sensor := c.robot.GetComponentByPort(linePort)
		if sensor == nil || sensor.Type() != robot.TypeColorSensor {
			log.Printf("car: %s: no colour sensor for line following", c.robot.Name())
			return
		}
		intensity := 50.0
		if s, ok := sensor.(intensityReader); ok {
			intensity = s.ReflectedLightIntensity()
		} else if s, ok := sensor.(rgbReader); ok {
			intensity = meanRGB(s.RGB())
		}

		left, right := speed*4, speed*2
		if intensity < FollowLineThreshold {
			left, right = speed*2, speed*4
		}
		c.eachSide(left, right, func(a actuator.Actuator, rate float64) {
			a.SetSpeedSetpoint(rate)
			a.RunForever()
		})
	}, FollowLineInterval)
}

func (c *Control) LookLeft() *executor.Command   { return c.look("left") }
func (c *Control) LookRight() *executor.Command  { return c.look("right") }
func (c *Control) LookCenter() *executor.Command { return c.look("center") }

func (c *Control) look(dir string) *executor.Command {
	return c.exec.Enqueue(func() {
		log.Printf("car: %s: servo look %s", c.robot.Name(), dir)
	}, LookDuration)
}

func (c *Control) OpenClaw() *executor.Command  { return c.claw("open", ClawSpeed) }
func (c *Control) CloseClaw() *executor.Command { return c.claw("close", -ClawSpeed) }

func (c *Control) claw(name string, speed float64) *executor.Command {
	return c.exec.Enqueue(func() {
		log.Printf("car: %s: claw %s", c.robot.Name(), name)
		motor, ok := c.robot.GetComponentByPort(clawPort).(actuator.Actuator)
		if !ok {
			return
		}
		motor.SetSpeedSetpoint(speed)
		motor.SetTimeSetpoint(ClawDuration.Seconds())
		motor.SetTimeTarget(c.clock.Now().Add(ClawDuration))
		motor.RunTimed()
	}, ClawDuration)
}

func (c *Control) Beep(frequency float64, duration int) *executor.Command {
	return c.exec.Enqueue(func() {
		log.Printf("car: %s: beep at %vHz for %dms", c.robot.Name(), frequency, duration)
	}, ms(duration))
}

func (c *Control) SetRGB(r, g, b int) *executor.Command {
	return c.exec.Enqueue(func() {
		c.robot.SetLED(color.RGBA{R: channel(r), G: channel(g), B: channel(b), A: 0xff})
	}, 0)
}

func channel(v int) uint8 {
	return uint8(common.Clamp(float64(v), 0, 255))
}

// HoldWheels stops both drive sides with HOLD immediately, bypassing the queue.
func (c *Control) HoldWheels() {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.eachSide(0, 0, func(a actuator.Actuator, _ float64) {
		a.SetStopAction(actuator.StopHold)
		a.Stop()
	})
}

// StopAll discards queued commands and holds both wheels.
func (c *Control) StopAll() {
	c.exec.StopAll()
}

// GetDistance reads the ultrasonic sensor on in2, or the first ultrasonic
// sensor when in2 is empty. It returns 0 without one.
func (c *Control) GetDistance() float64 {
	c.locker.Lock()
	defer c.locker.Unlock()

	sensor := c.robot.GetComponentByPort(distancePort)
	if sensor == nil {
		if all := c.robot.GetComponentsByType(robot.TypeUltrasonicSensor); len(all) > 0 {
			sensor = all[0]
		}
	}
	if sensor == nil || sensor.Type() != robot.TypeUltrasonicSensor {
		return 0
	}
	if s, ok := sensor.(distanceReader); ok {
		return s.Distance()
	}
	return 0
}

func (c *Control) GetLineSensorLeft() float64   { return c.readLineSensor(0) }
func (c *Control) GetLineSensorMiddle() float64 { return c.readLineSensor(1) }
func (c *Control) GetLineSensorRight() float64  { return c.readLineSensor(2) }

// readLineSensor prefers in1, then the idx-th colour sensor, then the first.
func (c *Control) readLineSensor(idx int) float64 {
	c.locker.Lock()
	defer c.locker.Unlock()

	sensor := c.robot.GetComponentByPort(linePort)
	if sensor == nil {
		all := c.robot.GetComponentsByType(robot.TypeColorSensor)
		switch {
		case idx < len(all):
			sensor = all[idx]
		case len(all) > 0:
			sensor = all[0]
		}
	}
	if sensor == nil {
		return 0
	}
	if s, ok := sensor.(intensityReader); ok {
		return s.ReflectedLightIntensity()
	}
	if s, ok := sensor.(rgbReader); ok {
		return meanRGB(s.RGB())
	}
	return 0
}

func meanRGB(rgb [3]float64) float64 {
	return (rgb[0] + rgb[1] + rgb[2]) / 3
}

func (c *Control) GetBatteryLevel() float64 {
	return BatteryLevel
}

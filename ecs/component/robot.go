package component

import "github.com/milk9111/robosim/robot"

type RobotRef struct {
	Robot *robot.Robot
}

// Player is the arena seat, or robot.Single outside multiplayer.
type Player struct {
	Number int
}

// Contact counts chassis collisions seen by the transform sync.
type Contact struct {
	Bumps int
}

// Program describes the run currently or last bound to a robot.
type Program struct {
	RunID   string
	Lang    string
	Running bool
	Err     string
}

var RobotComponent = NewComponent[RobotRef]()
var PlayerComponent = NewComponent[Player]()
var ContactComponent = NewComponent[Contact]()
var ProgramComponent = NewComponent[Program]()

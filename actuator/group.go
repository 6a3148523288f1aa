package actuator

import "time"

// Group presents several actuators as one. Reads return the first member's
// value; writes and run commands go to every member in order.
type Group struct {
	port    string
	members []Actuator
}

// NewGroup returns nil when members is empty. The group takes the first member's port.
func NewGroup(members ...Actuator) *Group {
	if len(members) == 0 {
		return nil
	}
	copied := append([]Actuator(nil), members...)
	return &Group{port: copied[0].Port(), members: copied}
}

// Members returns a copy of the member list.
func (g *Group) Members() []Actuator {
	return append([]Actuator(nil), g.members...)
}

func (g *Group) Port() string {
	return g.port
}

func (g *Group) first() Actuator {
	return g.members[0]
}

func (g *Group) SpeedSetpoint() float64 { return g.first().SpeedSetpoint() }

func (g *Group) SetSpeedSetpoint(degPerSec float64) {
	for _, m := range g.members {
		m.SetSpeedSetpoint(degPerSec)
	}
}

func (g *Group) TimeSetpoint() float64 { return g.first().TimeSetpoint() }

func (g *Group) SetTimeSetpoint(seconds float64) {
	for _, m := range g.members {
		m.SetTimeSetpoint(seconds)
	}
}

func (g *Group) TimeTarget() time.Time { return g.first().TimeTarget() }

func (g *Group) SetTimeTarget(t time.Time) {
	for _, m := range g.members {
		m.SetTimeTarget(t)
	}
}

func (g *Group) StopAction() StopAction { return g.first().StopAction() }

func (g *Group) SetStopAction(a StopAction) {
	for _, m := range g.members {
		m.SetStopAction(a)
	}
}

func (g *Group) PositionSetpoint() float64 { return g.first().PositionSetpoint() }

func (g *Group) SetPositionSetpoint(deg float64) {
	for _, m := range g.members {
		m.SetPositionSetpoint(deg)
	}
}

func (g *Group) Position() float64 { return g.first().Position() }

func (g *Group) SetPosition(deg float64) {
	for _, m := range g.members {
		m.SetPosition(deg)
	}
}

func (g *Group) Mode() Mode   { return g.first().Mode() }
func (g *Group) State() State { return g.first().State() }

func (g *Group) RunForever() {
	for _, m := range g.members {
		m.RunForever()
	}
}

func (g *Group) RunTimed() {
	for _, m := range g.members {
		m.RunTimed()
	}
}

func (g *Group) RunToPosition() {
	for _, m := range g.members {
		m.RunToPosition()
	}
}

func (g *Group) Stop() {
	for _, m := range g.members {
		m.Stop()
	}
}

func (g *Group) Reset() {
	for _, m := range g.members {
		m.Reset()
	}
}

func (g *Group) Render(delta float64) {
	for _, m := range g.members {
		m.Render(delta)
	}
}

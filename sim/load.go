package sim

import (
	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/prefabs"
	"github.com/milk9111/robosim/robot"
)

// NewFromPrefab builds a simulation from a world prefab name.
func NewFromPrefab(world string, opts Options) (*Simulation, error) {
	spec, err := prefabs.LoadWorldSpec(world)
	if err != nil {
		return nil, err
	}
	return New(spec, opts), nil
}

// AddRobots loads the robot prefab once and seats a copy per player, or a
// single robot when players is zero.
func (s *Simulation) AddRobots(name string, players int) ([]ecs.Entity, error) {
	spec, err := prefabs.LoadRobotSpec(name)
	if err != nil {
		return nil, err
	}
	if players <= 0 {
		e, err := s.AddRobot(spec, robot.Single)
		if err != nil {
			return nil, err
		}
		return []ecs.Entity{e}, nil
	}
	out := make([]ecs.Entity, 0, players)
	for p := 0; p < players; p++ {
		e, err := s.AddRobot(spec, p)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

package prefabs

import "gopkg.in/yaml.v3"

// DecodeComponentOptions decodes raw over defaults, keeping defaults for
// keys raw leaves out.
func DecodeComponentOptions[T any](raw map[string]any, defaults T) (T, error) {
	out := defaults
	if len(raw) == 0 {
		return out, nil
	}
	b, err := yaml.Marshal(raw)
	if err != nil {
		return defaults, err
	}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return defaults, err
	}
	return out, nil
}

// WheelComponentSpec overrides the robot's wheel parameters for one WheelActuator.
type WheelComponentSpec struct {
	Diameter            float64 `yaml:"diameter"`
	Width               float64 `yaml:"width"`
	Mass                float64 `yaml:"mass"`
	Friction            float64 `yaml:"friction"`
	MaxAcceleration     float64 `yaml:"max_acceleration"`
	StopActionHoldForce float64 `yaml:"stop_action_hold_force"`
	TireDownwardsForce  float64 `yaml:"tire_downwards_force"`
}

type MotorComponentSpec struct {
	MaxAcceleration     float64 `yaml:"max_acceleration"`
	StopActionHoldForce float64 `yaml:"stop_action_hold_force"`
	// Inertia of the driven load, as the mass of a disc of Radius.
	Mass   float64 `yaml:"mass"`
	Radius float64 `yaml:"radius"`
}

type UltrasonicComponentSpec struct {
	MaxRange float64 `yaml:"max_range"`
}

type GyroComponentSpec struct {
	// Drift in degrees per second added to the heading reading.
	Drift float64 `yaml:"drift"`
}

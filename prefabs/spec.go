package prefabs

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRobot = "robots/default.yaml"
	DefaultWorld = "worlds/default.yaml"
)

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// LoadMergedSpec decodes base and then filename into the same value, so keys
// missing from filename keep the base values.
func LoadMergedSpec[T any](base, filename string) (T, error) {
	spec, err := LoadSpec[T](base)
	if err != nil {
		return spec, err
	}
	if filename == "" || cleanPrefabPath(filename) == cleanPrefabPath(base) {
		return spec, nil
	}
	data, err := Load(filename)
	if err != nil {
		return spec, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}
	return spec, nil
}

// Vec3 is an [x, y, z] triple. On the arena floor x is lateral, z is forward
// and y is height.
type Vec3 [3]float64

func (v Vec3) X() float64 { return v[0] }
func (v Vec3) Y() float64 { return v[1] }
func (v Vec3) Z() float64 { return v[2] }

// Vec2 is an [x, y] point on the arena floor.
type Vec2 [2]float64

type RobotSpec struct {
	Name       string          `yaml:"name"`
	Color      *YAMLColor      `yaml:"color"`
	Caster     bool            `yaml:"caster"`
	Wheels     bool            `yaml:"wheels"`
	Body       BodySpec        `yaml:"body"`
	Wheel      WheelSpec       `yaml:"wheel"`
	CasterBall CasterSpec      `yaml:"caster_ball"`
	Components []ComponentSpec `yaml:"components"`
}

// LoadRobotSpec loads a robot prefab merged over the default robot.
func LoadRobotSpec(name string) (RobotSpec, error) {
	return LoadMergedSpec[RobotSpec](DefaultRobot, name)
}

// DecodeRobotSpec merges raw yaml over the default robot.
func DecodeRobotSpec(data []byte) (RobotSpec, error) {
	spec, err := LoadSpec[RobotSpec](DefaultRobot)
	if err != nil {
		return spec, err
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("prefabs: unmarshal robot: %w", err)
	}
	return spec, nil
}

type BodySpec struct {
	Width       float64 `yaml:"width"`
	Length      float64 `yaml:"length"`
	Height      float64 `yaml:"height"`
	Mass        float64 `yaml:"mass"`
	Friction    float64 `yaml:"friction"`
	Restitution float64 `yaml:"restitution"`
	// Damping is the fraction of velocity kept per second while sliding.
	Damping float64 `yaml:"damping"`
}

type WheelSpec struct {
	Diameter            float64 `yaml:"diameter"`
	Width               float64 `yaml:"width"`
	Mass                float64 `yaml:"mass"`
	Friction            float64 `yaml:"friction"`
	Restitution         float64 `yaml:"restitution"`
	ToBodyOffset        float64 `yaml:"to_body_offset"`
	EdgeToCenterY       float64 `yaml:"edge_to_center_y"`
	EdgeToCenterZ       float64 `yaml:"edge_to_center_z"`
	MaxAcceleration     float64 `yaml:"max_acceleration"`
	StopActionHoldForce float64 `yaml:"stop_action_hold_force"`
	TireDownwardsForce  float64 `yaml:"tire_downwards_force"`
}

type CasterSpec struct {
	Diameter float64 `yaml:"diameter"`
	Mass     float64 `yaml:"mass"`
	Friction float64 `yaml:"friction"`
	OffsetZ  float64 `yaml:"offset_z"`
}

// ComponentSpec is one node of a robot's component tree. Options are decoded
// per type with DecodeComponentOptions.
type ComponentSpec struct {
	Type       string          `yaml:"type"`
	Port       string          `yaml:"port"`
	Position   Vec3            `yaml:"position"`
	Rotation   Vec3            `yaml:"rotation"`
	Options    map[string]any  `yaml:"options"`
	Components []ComponentSpec `yaml:"components"`
}

type WorldSpec struct {
	Name              string         `yaml:"name"`
	Width             float64        `yaml:"width"`
	Length            float64        `yaml:"length"`
	Walls             bool           `yaml:"walls"`
	WallHeight        float64        `yaml:"wall_height"`
	WallThickness     float64        `yaml:"wall_thickness"`
	WallColor         *YAMLColor     `yaml:"wall_color"`
	GroundColor       *YAMLColor     `yaml:"ground_color"`
	GroundFriction    float64        `yaml:"ground_friction"`
	WallFriction      float64        `yaml:"wall_friction"`
	GroundRestitution float64        `yaml:"ground_restitution"`
	WallRestitution   float64        `yaml:"wall_restitution"`
	Lines             []LineSpec     `yaml:"lines"`
	Patches           []PatchSpec    `yaml:"patches"`
	Obstacles         []ObstacleSpec `yaml:"obstacles"`
	Start             StartSpec      `yaml:"start"`
	ArenaStarts       []StartSpec    `yaml:"arena_starts"`
	Timer             TimerSpec      `yaml:"timer"`
}

// LoadWorldSpec loads a world prefab merged over the default world.
func LoadWorldSpec(name string) (WorldSpec, error) {
	return LoadMergedSpec[WorldSpec](DefaultWorld, name)
}

type LineSpec struct {
	From  Vec2       `yaml:"from"`
	To    Vec2       `yaml:"to"`
	Width float64    `yaml:"width"`
	Color *YAMLColor `yaml:"color"`
}

type PatchSpec struct {
	Min   Vec2       `yaml:"min"`
	Max   Vec2       `yaml:"max"`
	Color *YAMLColor `yaml:"color"`
}

type ObstacleSpec struct {
	Position    Vec2    `yaml:"position"`
	Size        Vec2    `yaml:"size"`
	Angle       float64 `yaml:"angle"`
	Mass        float64 `yaml:"mass"`
	Friction    float64 `yaml:"friction"`
	Restitution float64 `yaml:"restitution"`
}

// StartSpec is a robot start pose. Heading is in degrees.
type StartSpec struct {
	Position Vec2    `yaml:"position"`
	Heading  float64 `yaml:"heading"`
}

type TimerSpec struct {
	Enabled bool    `yaml:"enabled"`
	Seconds float64 `yaml:"seconds"`
	// CountDown ends the run when Seconds reach zero.
	CountDown bool `yaml:"count_down"`
}

type YAMLColor struct {
	color.Color
}

// RGBA8 returns the colour as 8-bit RGBA, or fallback when c is unset.
func (c *YAMLColor) RGBA8(fallback color.RGBA) color.RGBA {
	if c == nil || c.Color == nil {
		return fallback
	}
	return color.RGBAModel.Convert(c.Color).(color.RGBA)
}

func (c *YAMLColor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("color must be a string")
	}

	s := strings.TrimPrefix(value.Value, "#")

	if len(s) != 6 && len(s) != 8 {
		return fmt.Errorf("invalid color format: %s", value.Value)
	}

	parse := func(start int) (uint8, error) {
		v, err := strconv.ParseUint(s[start:start+2], 16, 8)
		return uint8(v), err
	}

	r, err := parse(0)
	if err != nil {
		return err
	}
	g, err := parse(2)
	if err != nil {
		return err
	}
	b, err := parse(4)
	if err != nil {
		return err
	}

	a := uint8(255)
	if len(s) == 8 {
		a, err = parse(6)
		if err != nil {
			return err
		}
	}

	c.Color = color.NRGBA{R: r, G: g, B: b, A: a}
	return nil
}

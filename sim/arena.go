package sim

import (
	"image/color"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/robosim/common"
	"github.com/milk9111/robosim/physics"
	"github.com/milk9111/robosim/prefabs"
)

var (
	defaultGround = color.RGBA{R: 0x4d, G: 0x4d, B: 0x4d, A: 0xff}
	defaultPaint  = color.RGBA{A: 0xff}
)

// PhysicsConfig converts a world prefab into the physics arena description.
// Obstacle angles are given in degrees in the prefab.
func PhysicsConfig(spec prefabs.WorldSpec) physics.Config {
	cfg := physics.Config{
		Width:             spec.Width,
		Length:            spec.Length,
		Walls:             spec.Walls,
		WallThickness:     spec.WallThickness,
		WallFriction:      spec.WallFriction,
		WallRestitution:   spec.WallRestitution,
		GroundFriction:    spec.GroundFriction,
		GroundRestitution: spec.GroundRestitution,
		GroundColor:       spec.GroundColor.RGBA8(defaultGround),
	}
	for _, l := range spec.Lines {
		cfg.Lines = append(cfg.Lines, physics.Line{
			A:     vec(l.From),
			B:     vec(l.To),
			Width: l.Width,
			Color: l.Color.RGBA8(defaultPaint),
		})
	}
	for _, p := range spec.Patches {
		cfg.Patches = append(cfg.Patches, physics.Patch{
			Min:   vec(p.Min),
			Max:   vec(p.Max),
			Color: p.Color.RGBA8(defaultPaint),
		})
	}
	for _, o := range spec.Obstacles {
		cfg.Obstacles = append(cfg.Obstacles, physics.Obstacle{
			Position: vec(o.Position),
			Width:    o.Size[0],
			Length:   o.Size[1],
			Angle:    common.DegToRad(o.Angle),
			Impostor: physics.Impostor{
				Mass:        o.Mass,
				Friction:    o.Friction,
				Restitution: o.Restitution,
			},
		})
	}
	return cfg
}

func vec(v prefabs.Vec2) cp.Vector {
	return cp.Vector{X: v[0], Y: v[1]}
}

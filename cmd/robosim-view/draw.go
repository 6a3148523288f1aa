package main

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/jakecoffman/cp"
	"golang.org/x/image/colornames"
)

const debugCircleSegments = 24

// camera maps arena units, +Y forward, onto screen pixels, +Y down.
type camera struct {
	width, length float64
	zoom          float64
	margin        float64
}

func (c camera) toScreen(v cp.Vector) (float32, float32) {
	x := (v.X+c.width/2)*c.zoom + c.margin
	y := (c.length/2-v.Y)*c.zoom + c.margin
	return float32(x), float32(y)
}

// spaceDrawer implements cp.Drawer on an ebiten image. Painted floor shapes
// carry their colour in UserData and are drawn with it.
type spaceDrawer struct {
	screen *ebiten.Image
	cam    camera
}

func (d *spaceDrawer) DrawCircle(pos cp.Vector, angle, radius float64, outline, fill cp.FColor, data interface{}) {
	d.drawCircle(pos, radius, outline)
	end := cp.Vector{X: pos.X + math.Cos(angle)*radius, Y: pos.Y + math.Sin(angle)*radius}
	d.drawLine(pos, end, 1, toNRGBA(outline))
}

func (d *spaceDrawer) DrawSegment(a, b cp.Vector, fill cp.FColor, data interface{}) {
	d.drawLine(a, b, 1, toNRGBA(fill))
}

func (d *spaceDrawer) DrawFatSegment(a, b cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	width := float32(math.Max(2*radius*d.cam.zoom, 1))
	d.drawLine(a, b, width, toNRGBA(fill))
}

func (d *spaceDrawer) DrawPolygon(count int, verts []cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	if count <= 0 {
		return
	}
	d.drawPolygon(verts[:count], toNRGBA(outline))
}

func (d *spaceDrawer) DrawDot(size float64, pos cp.Vector, fill cp.FColor, data interface{}) {
	x, y := d.cam.toScreen(pos)
	vector.FillCircle(d.screen, x, y, float32(math.Max(size/2, 1)), toNRGBA(fill), true)
}

func (d *spaceDrawer) Flags() uint {
	return cp.DRAW_SHAPES | cp.DRAW_CONSTRAINTS
}

func (d *spaceDrawer) OutlineColor() cp.FColor {
	return fcolor(colornames.Lightgreen)
}

func (d *spaceDrawer) ShapeColor(shape *cp.Shape, data interface{}) cp.FColor {
	if c, ok := shape.UserData.(color.RGBA); ok {
		return fcolor(c)
	}
	if shape.Body().GetType() == cp.BODY_STATIC {
		return fcolor(colornames.Dimgray)
	}
	return fcolor(colornames.Seagreen)
}

func (d *spaceDrawer) ConstraintColor() cp.FColor {
	return fcolor(colornames.Orange)
}

func (d *spaceDrawer) CollisionPointColor() cp.FColor {
	return fcolor(colornames.Red)
}

func (d *spaceDrawer) Data() interface{} {
	return nil
}

func (d *spaceDrawer) drawLine(a, b cp.Vector, width float32, clr color.Color) {
	x1, y1 := d.cam.toScreen(a)
	x2, y2 := d.cam.toScreen(b)
	vector.StrokeLine(d.screen, x1, y1, x2, y2, width, clr, true)
}

func (d *spaceDrawer) drawPolygon(verts []cp.Vector, clr color.Color) {
	for i := range verts {
		d.drawLine(verts[i], verts[(i+1)%len(verts)], 1, clr)
	}
}

func (d *spaceDrawer) drawCircle(center cp.Vector, radius float64, clr cp.FColor) {
	if radius <= 0 {
		return
	}
	points := make([]cp.Vector, 0, debugCircleSegments)
	for i := 0; i < debugCircleSegments; i++ {
		t := (2 * math.Pi) * (float64(i) / float64(debugCircleSegments))
		points = append(points, cp.Vector{X: center.X + math.Cos(t)*radius, Y: center.Y + math.Sin(t)*radius})
	}
	d.drawPolygon(points, toNRGBA(clr))
}

func fcolor(c color.RGBA) cp.FColor {
	return cp.FColor{R: float32(c.R) / 255, G: float32(c.G) / 255, B: float32(c.B) / 255, A: float32(c.A) / 255}
}

func toNRGBA(c cp.FColor) color.NRGBA {
	return color.NRGBA{
		R: uint8(clamp01(c.R) * 255),
		G: uint8(clamp01(c.G) * 255),
		B: uint8(clamp01(c.B) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/robosim/common"
	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/prefabs"
	"github.com/milk9111/robosim/sim"
	"golang.org/x/image/colornames"
)

const (
	screenSize = 800
	margin     = 20
)

type Game struct {
	sim    *sim.Simulation
	robots []ecs.Entity
	cam    camera

	program string
	lang    string
	paused  bool
}

func NewGame(s *sim.Simulation, robots []ecs.Entity, program, lang string) *Game {
	spec := s.Spec()
	zoom := (screenSize - 2*margin) / math.Max(spec.Width, spec.Length)
	return &Game{
		sim:     s,
		robots:  robots,
		cam:     camera{width: spec.Width, length: spec.Length, zoom: zoom, margin: margin},
		program: program,
		lang:    lang,
	}
}

func (g *Game) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		g.paused = !g.paused
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.sim.Reset()
		g.runProgram()
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.sim.StopAll()
	}
	if !g.paused {
		g.sim.Tick()
	}
	return nil
}

func (g *Game) runProgram() {
	if g.program == "" {
		return
	}
	src, err := os.ReadFile(g.program)
	if err != nil {
		src, err = prefabs.LoadScript(g.program)
	}
	if err != nil {
		log.Printf("program %s: %v", g.program, err)
		return
	}
	lang := g.lang
	if lang == "" {
		lang = prefabs.ProgramLang(g.program)
	}
	for _, e := range g.robots {
		if _, err := g.sim.RunProgram(e, lang, src); err != nil {
			log.Printf("program %s on robot %s: %v", g.program, e, err)
		}
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Black)

	world := g.sim.Physics()
	cfg := world.Config()
	x0, y0 := g.cam.toScreen(cp.Vector{X: -cfg.Width / 2, Y: cfg.Length / 2})
	size := float32(g.cam.zoom)
	vector.FillRect(screen, x0, y0, float32(cfg.Width)*size, float32(cfg.Length)*size, cfg.GroundColor, false)
	for _, p := range cfg.Patches {
		px, py := g.cam.toScreen(cp.Vector{X: p.Min.X, Y: p.Max.Y})
		vector.FillRect(screen, px, py, float32(p.Max.X-p.Min.X)*size, float32(p.Max.Y-p.Min.Y)*size, p.Color, false)
	}

	lock := world.Locker()
	lock.Lock()
	cp.DrawSpace(world.Space(), &spaceDrawer{screen: screen, cam: g.cam})
	lock.Unlock()

	snap := g.sim.Snapshot()
	lines := []string{fmt.Sprintf("t=%.1fs  FPS %.0f  [P]ause [R]eset [Space] stop", snap.Time, ebiten.ActualFPS())}
	if snap.Timer != nil {
		lines = append(lines, fmt.Sprintf("timer %.1fs remaining=%.1fs expired=%v", snap.Timer.Elapsed, snap.Timer.Remaining, snap.Timer.Expired))
	}
	for _, r := range snap.Robots {
		x, y := g.cam.toScreen(cp.Vector{X: r.X, Y: r.Y})
		led, _ := parseHex(r.LED)
		vector.FillCircle(screen, x, y, 3, led, true)

		state := "idle"
		if r.Program != nil {
			state = r.Program.Lang
			if r.Program.Running {
				state += " running"
			} else if r.Program.Error != "" {
				state += " error: " + r.Program.Error
			} else {
				state += " done"
			}
		}
		lines = append(lines, fmt.Sprintf("%s #%d (%.1f, %.1f) %.0f° bumps=%d queue=%d %s",
			r.Name, r.Player, r.X, r.Y, r.Heading, r.Bumps, r.Queue, state))
	}
	if g.paused {
		lines = append(lines, "paused")
	}
	ebitenutil.DebugPrintAt(screen, strings.Join(lines, "\n"), margin, margin)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenSize, screenSize
}

func parseHex(s string) (color.RGBA, bool) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return colornames.White, false
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, true
}

func main() {
	worldName := flag.String("world", prefabs.DefaultWorld, "world prefab (worlds/<name>.yaml)")
	robotName := flag.String("robot", prefabs.DefaultRobot, "robot prefab (robots/<name>.yaml)")
	players := flag.Int("players", 0, "arena seats to fill; 0 shows a single robot")
	program := flag.String("program", "", "program to run on every robot: a scripts/ prefab or a file path")
	lang := flag.String("lang", "", "program language (tengo or arduino); defaults to the file extension")
	flag.Parse()

	s, err := sim.NewFromPrefab(*worldName, sim.Options{TickRate: common.TickRate})
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	robots, err := s.AddRobots(*robotName, *players)
	if err != nil {
		log.Fatal(err)
	}

	game := NewGame(s, robots, *program, *lang)
	game.runProgram()

	ebiten.SetTPS(common.TickRate)
	ebiten.SetWindowSize(screenSize, screenSize)
	ebiten.SetWindowTitle("robosim")
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}

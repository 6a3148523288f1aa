// Package server exposes a simulation over HTTP: a JSON API to inspect robots
// and run programs, and a websocket streaming snapshots.
package server

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/milk9111/robosim/sim"
)

const DefaultTelemetryInterval = 100 * time.Millisecond

type Options struct {
	// TelemetryInterval is how often snapshots are pushed to websocket clients.
	TelemetryInterval time.Duration
}

type Server struct {
	app      *fiber.App
	sim      *sim.Simulation
	hub      *hub
	interval time.Duration
}

func New(s *sim.Simulation, opts Options) *Server {
	interval := opts.TelemetryInterval
	if interval <= 0 {
		interval = DefaultTelemetryInterval
	}
	srv := &Server{
		sim:      s,
		hub:      newHub(),
		interval: interval,
	}

	app := fiber.New(fiber.Config{
		AppName:               "robosim",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/snapshot", srv.handleSnapshot)
	api.Get("/robots", srv.handleListRobots)
	api.Get("/robots/:id", srv.handleGetRobot)
	api.Post("/robots/:id/program", srv.handleRunProgram)
	api.Post("/robots/:id/stop", srv.handleStop)
	api.Post("/robots/:id/buttons/:name", srv.handleButton)
	api.Post("/reset", srv.handleReset)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/telemetry", websocket.New(srv.handleTelemetryWS))

	srv.app = app
	return srv
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on addr and streams telemetry until ctx ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	go s.broadcast(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) broadcast(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.count() == 0 {
				continue
			}
			if err := s.hub.broadcastJSON(s.sim.Snapshot()); err != nil {
				log.Printf("server: encode telemetry: %v", err)
			}
		}
	}
}

func (s *Server) handleTelemetryWS(conn *websocket.Conn) {
	c := s.hub.register(conn)
	// first frame goes out immediately so clients need not wait a tick
	if err := conn.WriteJSON(s.sim.Snapshot()); err != nil {
		s.hub.unregister(c)
		return
	}
	c.run(s.hub)
}

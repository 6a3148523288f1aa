package server

import (
	"errors"
	"io/fs"

	"github.com/gofiber/fiber/v2"
	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/robot"
	"github.com/milk9111/robosim/script"
	"github.com/milk9111/robosim/sim"
)

type programRequest struct {
	Lang   string `json:"lang"`
	Source string `json:"source"`
	// File names a program prefab instead of inline source.
	File string `json:"file"`
}

type buttonRequest struct {
	Pressed bool `json:"pressed"`
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, sim.ErrUnknownRobot):
		code = fiber.StatusNotFound
	case errors.Is(err, sim.ErrUnknownLang),
		errors.Is(err, script.ErrCompile),
		errors.Is(err, robot.ErrUnknownButton),
		errors.Is(err, fs.ErrNotExist):
		code = fiber.StatusBadRequest
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) entity(c *fiber.Ctx) (ecs.Entity, error) {
	e, err := ecs.ParseEntity(c.Params("id"))
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid robot id")
	}
	if _, ok := s.sim.Robot(e); !ok {
		return 0, sim.ErrUnknownRobot
	}
	return e, nil
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	return c.JSON(s.sim.Snapshot())
}

func (s *Server) handleListRobots(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"robots": s.sim.Snapshot().Robots})
}

func (s *Server) handleGetRobot(c *fiber.Ctx) error {
	e, err := s.entity(c)
	if err != nil {
		return err
	}
	snap, ok := s.sim.RobotSnapshot(e)
	if !ok {
		return sim.ErrUnknownRobot
	}
	return c.JSON(snap)
}

func (s *Server) handleRunProgram(c *fiber.Ctx) error {
	e, err := s.entity(c)
	if err != nil {
		return err
	}
	var req programRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid program request")
	}

	var id string
	if req.File != "" {
		id, err = s.sim.RunProgramFile(e, req.File)
	} else {
		id, err = s.sim.RunProgram(e, req.Lang, []byte(req.Source))
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"run_id": id})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	e, err := s.entity(c)
	if err != nil {
		return err
	}
	if err := s.sim.StopProgram(e); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleButton(c *fiber.Ctx) error {
	e, err := s.entity(c)
	if err != nil {
		return err
	}
	var req buttonRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid button request")
	}
	r, _ := s.sim.Robot(e)
	if err := r.SetHubButton(c.Params("name"), req.Pressed); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	s.sim.Reset()
	return c.SendStatus(fiber.StatusNoContent)
}

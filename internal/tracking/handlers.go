package tracking

import (
	"errors"

	"github.com/Fabian12Florin/KeepUp/internal/activity"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, daily *DailyRollover, authMiddleware fiber.Handler) {
	r.Post("/sessions", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Kind string `json:"kind"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		kind, err := activity.ParseKind(req.Kind)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "kind must be one of Running, Cycling, Walking, Yoga")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"session":  svc.Open(kind),
			"location": kind.LocationRequest(),
			"tracked":  kind.Tracked(),
		})
	})

	r.Get("/sessions", func(c *fiber.Ctx) error {
		return c.JSON(svc.Sessions())
	})

	r.Get("/sessions/:id", func(c *fiber.Ctx) error {
		snap, err := svc.Snapshot(c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/sessions/:id/start", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Start(c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/sessions/:id/stop", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Stop(c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/sessions/:id/samples", authMiddleware, func(c *fiber.Ctx) error {
		var req Sample
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		applied, err := svc.Ingest(c.Params("id"), req)
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"applied": applied})
	})

	r.Post("/sessions/:id/end", authMiddleware, func(c *fiber.Ctx) error {
		rec, err := svc.End(c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(rec)
	})

	r.Get("/daily", func(c *fiber.Ctx) error {
		if daily == nil || daily.SessionID() == "" {
			return fiber.NewError(fiber.StatusNotFound, "daily tracking disabled")
		}
		snap, err := svc.Snapshot(daily.SessionID())
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(snap)
	})
}

func toFiberError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

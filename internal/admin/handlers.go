package admin

import (
	"errors"
	"fmt"

	"backend-trekko/internal/auth"
	"backend-trekko/internal/event"
	"backend-trekko/internal/expedition"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, expeditions *expedition.Service, events *event.Service) {
	r.Get("/metrics", func(c *fiber.Ctx) error {
		metrics, err := svc.Metrics(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(metrics)
	})

	r.Get("/expeditions", func(c *fiber.Ctx) error {
		status := c.Query("status")
		if status == "" {
			status = "all"
		}
		list, total, err := expeditions.List(c.Context(), expedition.ListFilters{Status: status},
			c.QueryInt("page", 1), c.QueryInt("limit", 20))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"expeditions": list, "total": total})
	})

	r.Put("/expeditions/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid expedition id")
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil || body.Status == "" {
			return fiber.NewError(fiber.StatusBadRequest, "status required")
		}

		if _, err := expeditions.Update(c.Context(), int64(id), expedition.Expedition{Status: body.Status}); err != nil {
			if errors.Is(err, expedition.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		actorID := auth.UserID(c)
		events.Record(c.Context(), event.Event{
			Type:    "EXPEDITION_UPDATED",
			Message: fmt.Sprintf("Expedition #%d updated by admin", id),
			ActorID: &actorID,
		})
		return c.JSON(fiber.Map{"success": true})
	})

	r.Delete("/expeditions/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid expedition id")
		}
		if err := expeditions.Delete(c.Context(), int64(id)); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		actorID := auth.UserID(c)
		events.Record(c.Context(), event.Event{
			Type:     "EXPEDITION_DELETED",
			Message:  fmt.Sprintf("Expedition #%d removed by admin", id),
			Severity: "warning",
			ActorID:  &actorID,
		})
		return c.JSON(fiber.Map{"success": true})
	})
}

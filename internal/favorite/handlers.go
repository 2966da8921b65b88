package favorite

import (
	"backend-trekko/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		trails, err := svc.List(c.Context(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(trails)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			TrailID int64 `json:"trail_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.TrailID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "trail_id required")
		}
		if err := svc.Add(c.Context(), auth.UserID(c), body.TrailID); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Delete("/:trailId", authMiddleware, func(c *fiber.Ctx) error {
		trailID, err := c.ParamsInt("trailId")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid trail id")
		}
		if err := svc.Remove(c.Context(), auth.UserID(c), int64(trailID)); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Get("/:trailId/check", authMiddleware, func(c *fiber.Ctx) error {
		trailID, err := c.ParamsInt("trailId")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid trail id")
		}
		fav, err := svc.Check(c.Context(), auth.UserID(c), int64(trailID))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"favorite": fav})
	})
}

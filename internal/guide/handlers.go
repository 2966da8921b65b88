package guide

import (
	"errors"

	"backend-trekko/internal/auth"
	"backend-trekko/internal/registry"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		filters := ListFilters{
			Search:       c.Query("search"),
			UF:           c.Query("uf"),
			CadasturCode: c.Query("cadastur"),
		}
		entries, total, err := svc.List(c.Context(), filters, c.QueryInt("page", 1), c.QueryInt("limit", 12))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"guides": entries, "total": total})
	})

	r.Post("/become", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			CadasturNumber string `json:"cadastur_number"`
		}
		if err := c.BodyParser(&body); err != nil || body.CadasturNumber == "" {
			return fiber.NewError(fiber.StatusBadRequest, "cadastur_number required")
		}

		profile, err := svc.BecomeGuide(c.Context(), auth.UserID(c), body.CadasturNumber)
		switch {
		case errors.Is(err, ErrCertificateClaimed):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, registry.ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case errors.Is(err, registry.ErrExpired):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"success": true, "profile": profile})
	})

	r.Get("/:id/profile", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid guide id")
		}
		profile, err := svc.Profile(c.Context(), int64(id))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(profile)
	})
}

package trail

import (
	"context"
	"errors"
	"strconv"

	"backend-trekko/internal/expedition"

	"github.com/gofiber/fiber/v2"
)

// ExpeditionLister supplies the published expeditions shown on a trail
// detail page.
type ExpeditionLister interface {
	ByTrail(ctx context.Context, trailID int64) ([]expedition.Expedition, error)
}

func RegisterRoutes(r fiber.Router, svc *Service, related ExpeditionLister, authMiddleware, adminMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		maxDistance, _ := strconv.ParseFloat(c.Query("max_distance"), 64)
		filters := ListFilters{
			Search:      c.Query("search"),
			UF:          c.Query("uf"),
			Difficulty:  c.Query("difficulty"),
			MaxDistance: maxDistance,
		}
		trails, total, err := svc.List(c.Context(), filters, c.QueryInt("page", 1), c.QueryInt("limit", 12))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"trails": trails, "total": total})
	})

	r.Get("/ufs", func(c *fiber.Ctx) error {
		ufs, err := svc.DistinctUFs(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(ufs)
	})

	r.Get("/cities", func(c *fiber.Ctx) error {
		cities, err := svc.Cities(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(cities)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid trail id")
		}
		t, err := svc.Get(c.Context(), int64(id))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		resp := fiber.Map{"trail": t}
		if related != nil {
			if expeditions, err := related.ByTrail(c.Context(), t.ID); err == nil {
				resp["expeditions"] = expeditions
			}
		}
		return c.JSON(resp)
	})

	r.Post("/", authMiddleware, adminMiddleware, func(c *fiber.Ctx) error {
		var req Trail
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if req.Name == "" || len(req.UF) != 2 {
			return fiber.NewError(fiber.StatusBadRequest, "name and two-letter uf required")
		}
		t, err := svc.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	})
}

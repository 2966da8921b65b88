package expedition

import (
	"errors"
	"time"

	"backend-trekko/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware, guideMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		filters := ListFilters{
			Search: c.Query("search"),
			UF:     c.Query("uf"),
		}
		if v := c.Query("start_date"); v != "" {
			if t, err := time.Parse("2006-01-02", v); err == nil {
				filters.StartDate = &t
			}
		}
		if v := c.Query("end_date"); v != "" {
			if t, err := time.Parse("2006-01-02", v); err == nil {
				filters.EndDate = &t
			}
		}

		expeditions, total, err := svc.List(c.Context(), filters, c.QueryInt("page", 1), c.QueryInt("limit", 12))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"expeditions": withEffectiveStatus(expeditions), "total": total})
	})

	r.Get("/mine", authMiddleware, guideMiddleware, func(c *fiber.Ctx) error {
		expeditions, total, err := svc.List(c.Context(), ListFilters{GuideID: auth.UserID(c), Status: "all"}, 1, 100)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"expeditions": withEffectiveStatus(expeditions), "total": total})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid expedition id")
		}
		detailed, err := svc.GetDetailed(c.Context(), int64(id))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"expedition":       detailed,
			"effective_status": detailed.EffectiveStatus(),
			"available_spots":  detailed.AvailableSpots(),
		})
	})

	r.Post("/", authMiddleware, guideMiddleware, func(c *fiber.Ctx) error {
		var req Expedition
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if req.TrailID == 0 || req.StartDate.IsZero() {
			return fiber.NewError(fiber.StatusBadRequest, "trail_id and start_date required")
		}
		req.GuideID = auth.UserID(c)
		exp, err := svc.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(exp)
	})

	r.Put("/:id", authMiddleware, guideMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid expedition id")
		}
		if err := requireOwner(c, svc, int64(id)); err != nil {
			return err
		}

		var patch Expedition
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		exp, err := svc.Update(c.Context(), int64(id), patch)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(exp)
	})

	r.Delete("/:id", authMiddleware, guideMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid expedition id")
		}
		if err := requireOwner(c, svc, int64(id)); err != nil {
			return err
		}
		if err := svc.Delete(c.Context(), int64(id)); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/enroll", authMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid expedition id")
		}
		return enrollmentResult(c, svc.Enroll(c.Context(), int64(id), auth.UserID(c)))
	})

	r.Post("/:id/cancel", authMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid expedition id")
		}
		return enrollmentResult(c, svc.Cancel(c.Context(), int64(id), auth.UserID(c)))
	})

	r.Get("/:id/enrolled", authMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid expedition id")
		}
		enrolled, err := svc.IsEnrolled(c.Context(), int64(id), auth.UserID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"enrolled": enrolled})
	})

	r.Get("/:id/participants", authMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid expedition id")
		}
		participants, err := svc.Participants(c.Context(), int64(id), auth.UserID(c), auth.Role(c))
		if err != nil {
			switch {
			case errors.Is(err, ErrForbidden):
				return fiber.NewError(fiber.StatusForbidden, ErrForbidden.Error())
			case errors.Is(err, ErrNotFound):
				return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
			default:
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}
		return c.JSON(participants)
	})
}

type listItem struct {
	Expedition
	EffectiveStatus string `json:"effective_status"`
	AvailableSpots  int    `json:"available_spots"`
}

func withEffectiveStatus(expeditions []Expedition) []listItem {
	items := make([]listItem, len(expeditions))
	for i, exp := range expeditions {
		items[i] = listItem{
			Expedition:      exp,
			EffectiveStatus: exp.EffectiveStatus(),
			AvailableSpots:  exp.AvailableSpots(),
		}
	}
	return items
}

// enrollmentResult maps the named business failures to {success:false,
// reason} so callers always learn why, and keeps infra failures as 500s.
func enrollmentResult(c *fiber.Ctx, err error) error {
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true})
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotOpen),
		errors.Is(err, ErrFull),
		errors.Is(err, ErrAlreadyEnrolled),
		errors.Is(err, ErrNotEnrolled):
		return c.JSON(fiber.Map{"success": false, "reason": err.Error()})
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

func requireOwner(c *fiber.Ctx, svc *Service, id int64) error {
	exp, err := svc.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if exp.GuideID != auth.UserID(c) {
		return fiber.NewError(fiber.StatusForbidden, ErrForbidden.Error())
	}
	return nil
}

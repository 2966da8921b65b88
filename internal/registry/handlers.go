package registry

import (
	"bytes"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ClaimChecker reports whether a certificate number is already linked to
// an account. Checked before Validate so registry data is not leaked for
// already-claimed numbers.
type ClaimChecker interface {
	CertificateClaimed(ctx context.Context, certificateNumber string) (bool, error)
}

func RegisterRoutes(r fiber.Router, svc *Service, claims ClaimChecker, authMiddleware, adminMiddleware fiber.Handler) {
	r.Post("/validate", func(c *fiber.Ctx) error {
		var body struct {
			CadasturNumber string `json:"cadastur_number"`
		}
		if err := c.BodyParser(&body); err != nil || Normalize(body.CadasturNumber) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "cadastur_number required")
		}
		cert := Normalize(body.CadasturNumber)

		claimed, err := claims.CertificateClaimed(c.Context(), cert)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if claimed {
			return fiber.NewError(fiber.StatusConflict, "certificate already linked to another account")
		}

		rec, err := svc.Validate(c.Context(), cert)
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
		case errors.Is(err, ErrExpired):
			return fiber.NewError(fiber.StatusBadRequest, ErrExpired.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return c.JSON(fiber.Map{
			"valid":           true,
			"cadastur_number": cert,
			"guide":           rec,
		})
	})

	r.Get("/search", func(c *fiber.Ctx) error {
		name := c.Query("name")
		if name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		records, err := svc.Search(c.Context(), name, c.QueryInt("limit", 10))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(records)
	})

	r.Get("/stats", authMiddleware, adminMiddleware, func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(stats)
	})

	r.Post("/import", authMiddleware, adminMiddleware, func(c *fiber.Ctx) error {
		body := c.Body()
		if len(body) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "empty import payload")
		}
		report, err := svc.ImportBatch(c.Context(), bytes.NewReader(body))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(report)
	})
}

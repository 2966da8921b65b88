package event

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes mounts the event feed. The router passed in is expected
// to already enforce admin access.
func RegisterRoutes(r fiber.Router, svc *Service, hub *Hub) {
	r.Get("/", func(c *fiber.Ctx) error {
		events, err := svc.Recent(c.Context(), c.QueryInt("limit", 20))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(events)
	})

	r.Get("/live", websocket.New(func(c *websocket.Conn) {
		client := hub.Register(AdminFeed)
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		<-done
	}))
}

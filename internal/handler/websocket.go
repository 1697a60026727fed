package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	ws "github.com/makeasinger/songprompt/internal/websocket"
)

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// JobEvents handles GET /ws/jobs/:jobId
func JobEvents(hub *ws.Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		hub.Serve(c, c.Params("jobId"))
	})
}

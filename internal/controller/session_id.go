package controller

import "github.com/gofiber/fiber/v2"

const sessionHeader = "X-Session-ID"

// sessionID reads the session from the header, falling back to the query
func sessionID(ctx *fiber.Ctx) string {
	if id := ctx.Get(sessionHeader); id != "" {
		return id
	}
	return ctx.Query("session_id")
}

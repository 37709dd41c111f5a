package handler

import (
	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/internal/pkg/serverutils"
	"literature-agent-be/internal/service"
	internalWS "literature-agent-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// StreamHandler exposes the query stream over websocket
type StreamHandler struct {
	chat      service.IChatService
	jwtSecret string
	logger    logger.ILogger
}

func NewStreamHandler(chat service.IChatService, jwtSecret string, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		chat:      chat,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

func (h *StreamHandler) RegisterRoutes(r fiber.Router) {
	r.Use("/ws", h.upgrade)
	r.Get("/ws/query", websocket.New(func(c *websocket.Conn) {
		internalWS.ServeQuery(c, c.Locals("session_id").(string), h.chat, h.logger)
	}))
}

// upgrade authenticates the handshake and pins the session id
func (h *StreamHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	if h.jwtSecret != "" {
		tokenStr := serverutils.BearerToken(c)
		if tokenStr == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')")
		}
		if _, err := serverutils.ParseToken(tokenStr, h.jwtSecret); err != nil {
			h.logger.Warn("StreamHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
			return err
		}
	}

	id := c.Query("session_id")
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals("session_id", id)
	return c.Next()
}

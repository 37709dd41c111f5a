package websocket

import (
	"context"
	"errors"

	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/internal/service"

	"github.com/gofiber/websocket/v2"
)

var errMissingOptions = errors.New("generate requires options")

// ServeQuery runs a query websocket for one session until the peer leaves
func ServeQuery(c *websocket.Conn, sessionID string, chat service.IChatService, log logger.ILogger) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		Conn:      c,
		SessionID: sessionID,
		Send:      make(chan []byte, 256),
		chat:      chat,
		logger:    log,
	}
	log.Info(logModule, "Query socket opened", map[string]interface{}{"session_id": sessionID})

	go client.writePump(ctx)
	client.readPump(ctx, cancel) // the fiber handler goroutine owns the read side
}

package websocket

import (
	"context"
	"encoding/json"
	"time"

	"literature-agent-be/internal/dto"
	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/internal/pkg/serverutils"
	"literature-agent-be/internal/service"
	"literature-agent-be/pkg/stream"

	"github.com/gofiber/websocket/v2"
)

const (
	logModule      = "WS"
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one websocket connection bound to a session. Requests come in
// on the read side; every event of every call goes out through Send.
type Client struct {
	Conn      *websocket.Conn
	SessionID string
	Send      chan []byte

	chat   service.IChatService
	logger logger.ILogger
}

// readPump reads requests until the peer goes away, then cancels every
// call started from this connection.
func (c *Client) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(logModule, "Unexpected close", map[string]interface{}{
					"session_id": c.SessionID,
					"error":      err.Error(),
				})
			}
			return
		}

		events, err := c.dispatch(ctx, data)
		if err != nil {
			c.sendError(err.Error())
			continue
		}
		go c.forward(ctx, events)
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) (<-chan stream.Event, error) {
	var req dto.WsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	switch req.Type {
	case "generate":
		if req.Generate == nil {
			return nil, errMissingOptions
		}
		if err := serverutils.ValidateRequest(*req.Generate); err != nil {
			return nil, err
		}
		return c.chat.Generate(ctx, c.SessionID, req.Generate)
	default:
		q := dto.QueryRequest{Question: req.Question}
		if err := serverutils.ValidateRequest(q); err != nil {
			return nil, err
		}
		return c.chat.Query(ctx, c.SessionID, &q)
	}
}

func (c *Client) forward(ctx context.Context, events <-chan stream.Event) {
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		select {
		case c.Send <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) sendError(msg string) {
	data, _ := json.Marshal(stream.Event{Type: stream.TypeError, Content: msg})
	select {
	case c.Send <- data:
	default:
	}
}

// writePump writes one event per frame and keeps the connection alive
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

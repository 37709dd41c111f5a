package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const heartbeatInterval = 15 * time.Second

// writeSSE relays events as server-sent events. A failed flush means the
// client went away, and cancel stops the call behind the stream.
func writeSSE(ctx *fiber.Ctx, sessionID string, events <-chan stream.Event, cancel context.CancelFunc, log logger.ILogger) error {
	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")
	ctx.Set(sessionHeader, sessionID)

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					log.Error("HTTP", "Failed to serialize event", map[string]interface{}{"error": err.Error()})
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
				if err := w.Flush(); err != nil {
					log.Info("HTTP", "SSE client disconnected", map[string]interface{}{"session_id": sessionID})
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

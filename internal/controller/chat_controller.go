package controller

import (
	"context"

	"literature-agent-be/internal/dto"
	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/internal/pkg/serverutils"
	"literature-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Query(ctx *fiber.Ctx) error
	Generate(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chat", auth)
	h.Post("query", c.Query)
	h.Post("generate", c.Generate)
	h.Get("history", c.History)
}

// Query streams the answer to a question as server-sent events
func (c *chatController) Query(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	id := sessionID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.UserContext()))
	events, err := c.chatService.Query(callCtx, id, &req)
	if err != nil {
		cancel()
		return err
	}
	return writeSSE(ctx, id, events, cancel, c.logger)
}

// Generate streams report or slide generation progress as server-sent events
func (c *chatController) Generate(ctx *fiber.Ctx) error {
	var req dto.GenerateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	id := sessionID(ctx)
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.UserContext()))
	events, err := c.chatService.Generate(callCtx, id, &req)
	if err != nil {
		cancel()
		return err
	}
	return writeSSE(ctx, id, events, cancel, c.logger)
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	var q dto.HistoryQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}

	res, err := c.chatService.History(ctx.UserContext(), sessionID(ctx), &q)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat history", res))
}

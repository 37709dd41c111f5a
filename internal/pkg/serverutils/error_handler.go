package serverutils

import (
	"errors"

	"literature-agent-be/pkg/parser"
	"literature-agent-be/pkg/session"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns handler errors into the JSON envelope
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		var validationErr *ValidationError
		var parseErr *parser.ParseError

		switch {
		case errors.As(err, &validationErr):
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(fiber.StatusBadRequest, "Invalid request", validationErr.Fields))
		case errors.As(err, &parseErr):
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse(fiber.StatusUnprocessableEntity, parseErr.Error(), nil))
		case errors.Is(err, session.ErrSessionBusy):
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse(fiber.StatusConflict, err.Error(), nil))
		case errors.Is(err, session.ErrNoDocument):
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(fiber.StatusBadRequest, err.Error(), nil))
		case errors.As(err, &fiberErr):
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message, nil))
		default:
			return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, err.Error(), nil))
		}
	}
}

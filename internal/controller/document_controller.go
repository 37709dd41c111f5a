package controller

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"literature-agent-be/internal/dto"
	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/internal/pkg/serverutils"
	"literature-agent-be/internal/repository/artifact"
	"literature-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Upload(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Figures(ctx *fiber.Ctx) error
	FigureImage(ctx *fiber.Ctx) error
	Segment(ctx *fiber.Ctx) error
	Download(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
	artifacts       *artifact.Registry
	uploadDir       string
	logger          logger.ILogger
}

func NewDocumentController(documentService service.IDocumentService, artifacts *artifact.Registry, uploadDir string, log logger.ILogger) IDocumentController {
	return &documentController{
		documentService: documentService,
		artifacts:       artifacts,
		uploadDir:       uploadDir,
		logger:          log,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("", auth)
	h.Post("upload", c.Upload)
	h.Get("status", c.Status)
	h.Get("figures", c.Figures)
	h.Get("figures/image", c.FigureImage)
	h.Post("figures/segment", c.Segment)
	// the token itself authorizes a download
	r.Get("download", c.Download)
}

func (c *documentController) Upload(ctx *fiber.Ctx) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		return fiber.NewError(fiber.StatusBadRequest, "only PDF files are supported")
	}

	if err := os.MkdirAll(c.uploadDir, 0o755); err != nil {
		return err
	}
	// keep the original name for display, prefix it to avoid collisions
	path := filepath.Join(c.uploadDir, uuid.NewString()[:8]+"_"+filepath.Base(file.Filename))
	if err := ctx.SaveFile(file, path); err != nil {
		return err
	}

	res, err := c.documentService.Load(ctx.UserContext(), sessionID(ctx), path)
	if err != nil {
		return err
	}
	ctx.Set(sessionHeader, res.SessionId)
	return ctx.JSON(serverutils.SuccessResponse("Document loaded", res))
}

func (c *documentController) Status(ctx *fiber.Ctx) error {
	res, err := c.documentService.Status(sessionID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session status", res))
}

func (c *documentController) Figures(ctx *fiber.Ctx) error {
	res, err := c.documentService.Figures(sessionID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Figures", res))
}

func (c *documentController) FigureImage(ctx *fiber.Ctx) error {
	var req dto.FigureImageRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	path, err := c.documentService.FigureImage(sessionID(ctx), req)
	if err != nil {
		return err
	}
	return ctx.SendFile(path)
}

func (c *documentController) Segment(ctx *fiber.Ctx) error {
	var req dto.SegmentFiguresRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.documentService.Segment(ctx.UserContext(), sessionID(ctx), req.Figures)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Figures segmented", res))
}

func (c *documentController) Download(ctx *fiber.Ctx) error {
	a, err := c.artifacts.Resolve(ctx.UserContext(), ctx.Query("token"))
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	if _, err := os.Stat(a.Path); err != nil {
		c.logger.Warn("HTTP", "Registered artifact is missing on disk", map[string]interface{}{
			"name": a.Name,
		})
		return fiber.NewError(fiber.StatusGone, "the generated file is no longer available")
	}
	return ctx.Download(a.Path, a.Name)
}

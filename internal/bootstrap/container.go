package bootstrap

import (
	"context"
	"path/filepath"
	"time"

	"literature-agent-be/internal/config"
	"literature-agent-be/internal/controller"
	"literature-agent-be/internal/handler"
	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/internal/pkg/serverutils"
	"literature-agent-be/internal/repository/artifact"
	"literature-agent-be/internal/repository/implementation"
	"literature-agent-be/internal/repository/memory"
	"literature-agent-be/internal/repository/unitofwork"
	"literature-agent-be/internal/service"
	"literature-agent-be/pkg/agent"
	"literature-agent-be/pkg/ai/router"
	"literature-agent-be/pkg/document"
	"literature-agent-be/pkg/llm/factory"
	pktNats "literature-agent-be/pkg/nats"
	"literature-agent-be/pkg/parser"
	"literature-agent-be/pkg/segment"
	"literature-agent-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const prewarmTopic = "SEGMENT_FIGURES"

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	ChatController     controller.IChatController
	StreamHandler      *handler.StreamHandler
	AuthMiddleware     fiber.Handler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Shared for in-process clients (cmd/cli)
	Sessions *service.SessionLocator
	Logger   logger.ILogger

	closers []func()
}

// NewContainer wires every component. db may be nil, which disables the
// chat archive; NATS and Redis are optional too.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	return newContainer(db, cfg, logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction()))
}

// NewConsoleContainer is NewContainer for interactive clients: logs go to the
// log file only.
func NewConsoleContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	return newContainer(db, cfg, logger.NewIsolatedLogger(cfg.App.LogFilePath))
}

func newContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	// 1. Core Facades
	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		p, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS, lifecycle events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			natsPub = p
			c.closers = append(c.closers, p.Close)
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to Redis, download tokens kept in memory", map[string]interface{}{"error": err.Error()})
			_ = rdb.Close()
			rdb = nil
		} else {
			c.closers = append(c.closers, func() { _ = rdb.Close() })
		}
		cancel()
	}

	var archiveService service.IArchiveService
	if db != nil {
		archiveService = service.NewArchiveService(unitofwork.NewTransactor(db), implementation.NewChatTurnRepository(db))
	}

	// 4. Domain collaborators
	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider:    cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		VisionModel: cfg.Ai.LLMVisionModel,
		BaseURL:     providerBaseURL(cfg),
		APIKey:      cfg.Ai.HuggingFaceAPIKey,
		Timeout:     cfg.Ai.Timeout,
		MaxRetries:  cfg.Ai.MaxRetries,
	}, sysLogger)
	if err != nil {
		return nil, err
	}
	sysLogger.Info("Bootstrap", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
		"vision":   cfg.Ai.LLMVisionModel,
	})

	var modelDetector segment.Detector
	if cfg.Segment.ModelURL != "" {
		modelDetector = segment.NewModelDetector(cfg.Segment.ModelURL, cfg.Segment.Timeout)
	}
	segmenter := segment.NewEngine(
		modelDetector,
		segment.NewHeuristicDetector(cfg.Segment.MinRegion),
		segment.Config{MinConfidence: cfg.Segment.MinConfidence, ModelTimeout: cfg.Segment.Timeout},
		sysLogger,
	)

	pdfParser := parser.NewFitzParser(filepath.Join(cfg.Storage.OutputDir, "figures"), cfg.Segment.RenderDPI, sysLogger)
	builder := document.NewFileBuilder(filepath.Join(cfg.Storage.OutputDir, "generated"), sysLogger)
	registry := artifact.NewRegistry(rdb, cfg.Storage.ArtifactTTL, sysLogger)

	agents := agent.NewSet(agent.Deps{
		LLM:       llmProvider,
		Segmenter: segmenter,
		Builder:   builder,
		Artifacts: registry,
		Config: agent.Config{
			VisionTimeout: cfg.Ai.VisionTimeout,
			DownloadPath:  "/api/download",
		},
		Logger: sysLogger,
	})
	intentRouter := router.NewRouter(sysLogger)

	sessionDeps := session.Deps{
		Parser:    pdfParser,
		Router:    intentRouter,
		Agents:    agents,
		Segmenter: segmenter,
		Logger:    sysLogger,
	}
	if archiveService != nil {
		sessionDeps.Archiver = archiveService
	}
	if natsPub != nil {
		sessionDeps.Publisher = natsPub
	}

	// 5. Services
	sessions := service.NewSessionLocator(memory.NewSessionRepository(2*time.Hour), func(id string) *session.Controller {
		return session.NewController(id, sessionDeps)
	})
	c.Sessions = sessions

	publisherService := service.NewPublisherService(prewarmTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, prewarmTopic, sessions, sysLogger)

	documentService := service.NewDocumentService(sessions, publisherService, cfg.Segment.AutoSplitFigures, sysLogger)
	chatService := service.NewChatService(sessions, archiveService)

	// 6. Controllers
	c.DocumentController = controller.NewDocumentController(documentService, registry, cfg.Storage.UploadDir, sysLogger)
	c.ChatController = controller.NewChatController(chatService, sysLogger)
	c.StreamHandler = handler.NewStreamHandler(chatService, cfg.App.JWTSecret, sysLogger)
	c.AuthMiddleware = serverutils.JwtMiddleware(cfg.App.JWTSecret)

	return c, nil
}

func providerBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "huggingface" {
		return cfg.Ai.HuggingFaceBaseURL
	}
	return cfg.Ai.OllamaBaseURL
}

// Close releases infrastructure connections and flushes logs
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

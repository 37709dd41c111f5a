package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"literature-agent-be/internal/bootstrap"
	"literature-agent-be/internal/config"
	"literature-agent-be/internal/server"
	"literature-agent-be/internal/tracer"
	"literature-agent-be/pkg/database"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (optional chat archive)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.IsProduction())
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		gormDB = db
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	shutdownTracer := tracer.InitTracer(cfg.App.OtelEnabled, container.Logger)
	defer shutdownTracer(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, container)
	g, gctx := errgroup.WithContext(ctx)

	// 4. Background Services
	g.Go(func() error {
		return container.ConsumerService.Consume(gctx)
	})

	// 5. HTTP server
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		container.Logger.Error("Main", "Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
}

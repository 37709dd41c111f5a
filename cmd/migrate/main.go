package main

import (
	"log"

	"literature-agent-be/internal/config"
	"literature-agent-be/internal/model"
	"literature-agent-be/pkg/database"
)

// migrate prepares the optional chat archive
func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("DB_CONNECTION_STRING is not set; the chat archive is disabled without it")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Migrating chat_turns...")
	if err := db.AutoMigrate(&model.ChatTurn{}); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// history reads and retention trims both walk one session by time
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_turns_session_created ON chat_turns (session_id, created_at DESC)`).Error; err != nil {
		log.Fatalf("Failed to create index: %v", err)
	}

	log.Println("Migration complete")
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"loopscan/adapters/postgres"
	"loopscan/adapters/postgres/migrations"
	"loopscan/internal/config"
	"loopscan/internal/logging"
)

func main() {
	if len(os.Args) < 2 || (os.Args[1] != "up" && os.Args[1] != "status") {
		log.Fatal("Usage: migrate up|status")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	logger, err := logging.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	ctx := logging.WithLogger(context.Background(), logger)

	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	m := migrations.NewMigrator(db)
	if os.Args[1] == "up" {
		if err := m.Up(ctx); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}

	status, err := m.Status(ctx)
	if err != nil {
		log.Fatalf("Failed to read migration status: %v", err)
	}
	for _, s := range status {
		mark := "pending"
		if s.Applied {
			mark = "applied"
		}
		fmt.Printf("%s  %-30s %s\n", s.Version, s.Name, mark)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"number_baseball/internal/config"
	"number_baseball/internal/db"
	"number_baseball/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	apply := flag.Bool("apply", false, "apply migrations instead of listing them")
	dir := flag.String("dir", filepath.Join("internal", "migrations"), "migrations directory")
	flag.Parse()

	if !*apply {
		files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
		if err != nil {
			logger.Fatal("list migrations", "error", err)
		}
		for _, f := range files {
			fmt.Println(filepath.Base(f))
		}
		return
	}

	ctx := context.Background()
	pool := db.Connect(ctx, cfg.DatabaseURL)
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, *dir); err != nil {
		logger.Error("migrations failed", "error", err)
		pool.Close()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"detour-route-service/internal/adapters/cache"
	"detour-route-service/internal/platform/db"
	"detour-route-service/internal/platform/logger"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// dbtool creates the durable geocode store schema.
func main() {
	_ = godotenv.Load()

	log, err := logger.NewNamed(os.Getenv("APP_ENV"), "dbtool")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	defer conn.Close()

	log.Info("initializing geocode cache schema")
	if err := cache.InitSchema(ctx, conn); err != nil {
		log.Fatal("schema initialization failed", zap.Error(err))
	}
	log.Info("schema ready")
}

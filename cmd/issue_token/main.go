package main

import (
	"flag"
	"fmt"
	"time"

	"number_baseball/internal/config"
	"number_baseball/internal/logger"
	"number_baseball/internal/service"
)

// Prints a token accepted by the websocket endpoints as ?token=...
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	userID := flag.Int64("user", 1, "user id to put in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(cfg.JWTSecret)

	token, err := service.GenerateJWT(*userID, *ttl)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}
	fmt.Println(token)
}

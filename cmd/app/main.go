package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"number_baseball/internal/config"
	"number_baseball/internal/db"
	httpServer "number_baseball/internal/http"
	"number_baseball/internal/http/handlers"
	"number_baseball/internal/http/middleware"
	"number_baseball/internal/logger"
	"number_baseball/internal/repository"
	"number_baseball/internal/secretcode"
	"number_baseball/internal/service"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	service.InitJWT(cfg.JWTSecret)
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	backends := httpServer.MemoryBackends()
	backends.Checks = map[string]handlers.Pinger{}

	if cfg.DatabaseURL != "" {
		dbPool := db.Connect(ctx, cfg.DatabaseURL)
		defer dbPool.Close()
		backends.Waiting = repository.NewWaitingRepository(dbPool)
		backends.Duels = repository.NewDuelRepository(dbPool)
		backends.Checks["database"] = dbPool.Ping
	} else {
		logger.Warn("DATABASE_URL not set, sessions and waiting entries kept in memory")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("failed to ping redis", "error", err)
		}
		backends.Codes = secretcode.NewRedisStore(rdb)
		backends.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		middleware.UseRedis(rdb)
		logger.Info("redis connected")
	}

	r := httpServer.NewRouter(cfg, backends, version)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

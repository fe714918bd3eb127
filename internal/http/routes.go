package http

import (
	"time"

	"number_baseball/internal/config"
	"number_baseball/internal/duel"
	"number_baseball/internal/http/handlers"
	"number_baseball/internal/http/middleware"
	"number_baseball/internal/secretcode"
	"number_baseball/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the assembled services the routes expose.
type Deps struct {
	Hub        *ws.Hub
	Dispatcher *ws.Dispatcher
	Duels      *duel.Service
	Pool       *secretcode.Pool
	Checks     map[string]handlers.Pinger
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, version string) {
	h := handlers.NewHandler(deps.Duels, deps.Pool)
	healthHandler := handlers.NewHealthHandler(deps.Checks, deps.Hub.Count, version)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wsOpts := ws.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		EventRate:     cfg.EventRate,
		EventBurst:    cfg.EventBurst,
	}
	r.GET("/ws", ws.HandleMatchmaking(deps.Hub, deps.Dispatcher, wsOpts))
	r.GET("/ws/duel/:id", ws.HandleDuel(deps.Hub, deps.Dispatcher, wsOpts))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.APIRateLimit, time.Duration(cfg.APIRateWindow)*time.Second))
	{
		v1.GET("/duels/:id", h.GetDuel)
		v1.POST("/secret-codes/refill", h.RefillSecretCodes)
	}
}

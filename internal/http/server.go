package http

import (
	"number_baseball/internal/config"
	"number_baseball/internal/duel"
	"number_baseball/internal/http/handlers"
	"number_baseball/internal/http/middleware"
	"number_baseball/internal/matchmaking"
	"number_baseball/internal/repository"
	"number_baseball/internal/secretcode"
	"number_baseball/internal/ws"

	"github.com/gin-gonic/gin"
)

// Backends are the storage implementations the server runs on.
type Backends struct {
	Waiting matchmaking.Store
	Duels   duel.Store
	Codes   secretcode.Store
	Checks  map[string]handlers.Pinger
}

// MemoryBackends keeps everything in process memory.
func MemoryBackends() Backends {
	return Backends{
		Waiting: repository.NewMemoryWaitingRepository(),
		Duels:   repository.NewMemoryDuelRepository(),
		Codes:   secretcode.NewMemoryStore(),
	}
}

// NewRouter assembles the services on top of b and returns the engine with
// every route registered.
func NewRouter(cfg *config.Config, b Backends, version string) *gin.Engine {
	hub := ws.NewHub()
	duels := duel.NewService(b.Duels, hub)
	pool := secretcode.NewPool(b.Codes)
	registry := matchmaking.NewRegistry(b.Waiting, hub.IsLive)
	coordinator := matchmaking.NewCoordinator(registry, pool, duels, hub)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLog())

	// CORS for a frontend served from another origin
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	RegisterRoutes(r, cfg, Deps{
		Hub:        hub,
		Dispatcher: ws.NewDispatcher(hub, coordinator, duels),
		Duels:      duels,
		Pool:       pool,
		Checks:     b.Checks,
	}, version)
	return r
}

package handlers

import (
	"net/http"

	"number_baseball/internal/domain"
	"number_baseball/internal/duel"
	"number_baseball/internal/logger"
	"number_baseball/internal/secretcode"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Duels *duel.Service
	Pool  *secretcode.Pool
}

func NewHandler(duels *duel.Service, pool *secretcode.Pool) *Handler {
	return &Handler{Duels: duels, Pool: pool}
}

// respondError writes err with the status its kind maps to. Internal causes
// are logged and hidden from the client.
func respondError(c *gin.Context, err error) {
	de := domain.AsError(err)
	if de.Kind == domain.KindInternal {
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": de.Message}
	if de.RedirectHint != "" {
		body["redirect"] = de.RedirectHint
	}
	c.JSON(de.StatusCode(), body)
}

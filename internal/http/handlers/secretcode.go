package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RefillSecretCodes POST /api/v1/secret-codes/refill
func (h *Handler) RefillSecretCodes(c *gin.Context) {
	n, err := h.Pool.Refill(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": n})
}

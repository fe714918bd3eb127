package handlers

import (
	"net/http"

	"number_baseball/internal/domain"

	"github.com/gin-gonic/gin"
)

// DuelResponse is the public view of a session. Secret numbers are never
// serialised.
type DuelResponse struct {
	*domain.DuelSession
	Phase domain.Phase `json:"phase"`
}

// GetDuel GET /api/v1/duels/:id
func (h *Handler) GetDuel(c *gin.Context) {
	s, err := h.Duels.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DuelResponse{DuelSession: s, Phase: s.Phase()})
}

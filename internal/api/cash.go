package api

import (
	"net/http"
	"time"

	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listMovements(c *gin.Context) {
	r, ok := h.dayParam(c)
	if !ok {
		return
	}
	movements, err := h.cash.ListMovements(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func (h *Handler) createMovement(c *gin.Context) {
	var req service.CashMovementRequest
	if !bindJSON(c, &req) {
		return
	}
	movement, err := h.cash.CreateMovement(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

// cashSummary handles GET /cash/summary?date=YYYY-MM-DD, defaulting to today
func (h *Handler) cashSummary(c *gin.Context) {
	r, ok := h.dayParam(c)
	if !ok {
		return
	}
	day := time.Now()
	if !r.IsZero() {
		day = r.From
	}

	summary, err := h.cash.Summary(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) closeRegister(c *gin.Context) {
	var req service.CloseRegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	closedBy := ""
	if claims := currentClaims(c); claims != nil {
		closedBy = claims.Email
	}

	closing, err := h.cash.Close(c.Request.Context(), &req, closedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, closing)
}

func (h *Handler) closingStatus(c *gin.Context) {
	closed, err := h.cash.IsClosedToday(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}

package api

import (
	"net/http"
	"strconv"

	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
)

// createSale handles sale registration
func (h *Handler) createSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	sale, err := h.sales.CreateSale(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sale)
}

func (h *Handler) listSales(c *gin.Context) {
	r, ok := h.dayParam(c)
	if !ok {
		return
	}
	sales, err := h.sales.ListSales(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (h *Handler) getSale(c *gin.Context) {
	id, ok := idParam(c, "sale")
	if !ok {
		return
	}
	sale, err := h.sales.GetSale(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// topProducts handles GET /reports/top-products?limit=N&date=YYYY-MM-DD
func (h *Handler) topProducts(c *gin.Context) {
	r, ok := h.dayParam(c)
	if !ok {
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit",
			})
			return
		}
		limit = n
	}

	rows, err := h.sales.TopProducts(c.Request.Context(), r, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

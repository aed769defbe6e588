package api

import (
	"net/http"

	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListPurchaseOrders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreatePurchaseOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.CreatePurchaseOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// getOrder handles get purchase order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := idParam(c, "order")
	if !ok {
		return
	}
	order, err := h.orders.GetPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// updateOrderStatus handles PUT /orders/:id with body {"status": "..."}
func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "order")
	if !ok {
		return
	}
	var req service.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

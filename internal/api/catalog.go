package api

import (
	"net/http"

	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := idParam(c, "product")
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := idParam(c, "product")
	if !ok {
		return
	}
	var req service.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := idParam(c, "product")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// lowStock handles GET /products/low-stock?distributor=NAME
func (h *Handler) lowStock(c *gin.Context) {
	suggestions, err := h.catalog.LowStock(c.Request.Context(), c.Query("distributor"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

func (h *Handler) listDistributors(c *gin.Context) {
	distributors, err := h.catalog.ListDistributors(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, distributors)
}

func (h *Handler) createDistributor(c *gin.Context) {
	var req service.DistributorRequest
	if !bindJSON(c, &req) {
		return
	}
	distributor, err := h.catalog.CreateDistributor(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, distributor)
}

func (h *Handler) resetDatabase(c *gin.Context) {
	if err := h.catalog.ResetData(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Business data deleted"})
}

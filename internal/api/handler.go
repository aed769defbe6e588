package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles the business services exposed over HTTP
type Services struct {
	Auth     *service.AuthService
	Catalog  *service.CatalogService
	Sales    *service.SaleService
	Orders   *service.PurchaseOrderService
	Cash     *service.CashService
	Settings *service.SettingsService
	Alerts   *service.AlertService
}

// ReadinessCheck is a named dependency probe used by /ready
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	auth     *service.AuthService
	catalog  *service.CatalogService
	sales    *service.SaleService
	orders   *service.PurchaseOrderService
	cash     *service.CashService
	settings *service.SettingsService
	alerts   *service.AlertService
	checks   []ReadinessCheck
	loc      *time.Location
}

// NewHandler creates a new HTTP handler. Calendar day filters are
// interpreted in loc.
func NewHandler(services Services, loc *time.Location, checks ...ReadinessCheck) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		auth:     services.Auth,
		catalog:  services.Catalog,
		sales:    services.Sales,
		orders:   services.Orders,
		cash:     services.Cash,
		settings: services.Settings,
		alerts:   services.Alerts,
		checks:   checks,
		loc:      loc,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", h.login)
		v1.POST("/auth/forgot-password", h.forgotPassword)
		v1.POST("/auth/reset-password", h.resetPassword)
	}

	secured := v1.Group("")
	secured.Use(authMiddleware(h.auth))
	{
		secured.POST("/auth/logout", h.logout)

		secured.GET("/products", h.listProducts)
		secured.POST("/products", h.createProduct)
		secured.GET("/products/low-stock", h.lowStock)
		secured.GET("/products/:id", h.getProduct)
		secured.PUT("/products/:id", h.updateProduct)
		secured.DELETE("/products/:id", h.deleteProduct)

		secured.GET("/sales", h.listSales)
		secured.POST("/sales", h.createSale)
		secured.GET("/sales/:id", h.getSale)

		secured.GET("/orders", h.listOrders)
		secured.POST("/orders", h.createOrder)
		secured.GET("/orders/:id", h.getOrder)
		secured.PUT("/orders/:id", h.updateOrderStatus)

		secured.GET("/distributors", h.listDistributors)
		secured.POST("/distributors", h.createDistributor)

		secured.GET("/cash/movements", h.listMovements)
		secured.POST("/cash/movements", h.createMovement)
		secured.GET("/cash/summary", h.cashSummary)
		secured.POST("/cash/closings", h.closeRegister)
		secured.GET("/cash/closings/today", h.closingStatus)

		secured.GET("/reports/top-products", h.topProducts)

		secured.GET("/settings", h.getSettings)
		secured.PUT("/settings", h.updateSettings)

		secured.GET("/alerts", h.listAlerts)

		secured.DELETE("/database/reset", h.resetDatabase)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			failed[check.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// idParam parses the :id path parameter, answering 400 when it is not a number
func idParam(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + what + " ID",
		})
		return 0, false
	}
	return id, true
}

// dayParam parses the optional ?date=YYYY-MM-DD filter into a calendar day
func (h *Handler) dayParam(c *gin.Context) (models.DateRange, bool) {
	value := c.Query("date")
	if value == "" {
		return models.DateRange{}, true
	}
	day, err := time.ParseInLocation("2006-01-02", value, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid date, expected YYYY-MM-DD",
			"details": err.Error(),
		})
		return models.DateRange{}, false
	}
	return models.DayRange(day, h.loc), true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

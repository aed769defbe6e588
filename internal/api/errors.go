package api

import (
	"errors"
	"net/http"

	"pos-service/internal/service"
	"pos-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps service errors onto HTTP responses
func writeError(c *gin.Context, err error) {
	var partial *service.PartialApplicationError
	if errors.As(err, &partial) {
		util.GetLogger().Error("Stock changes left unreconciled",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Stock was only partially applied and needs manual reconciliation",
			"details":   err.Error(),
			"unapplied": partial.Lines,
		})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))

		message := "Internal server error"
		var persist *service.PersistenceError
		if errors.As(err, &persist) {
			message = "Storage error"
		}
		c.JSON(status, gin.H{
			"error":   message,
			"details": err.Error(),
		})
		return
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrSaleNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrTotalMismatch),
		errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrProductNameTaken),
		errors.Is(err, service.ErrDistributorNameTaken),
		errors.Is(err, service.ErrAlreadyClosed),
		errors.Is(err, service.ErrOrderBusy),
		errors.Is(err, service.ErrClosingBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUserInactive):
		return http.StatusForbidden
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

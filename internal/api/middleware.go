package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"pos-service/internal/service"
	"pos-service/internal/util"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// authMiddleware requires a valid bearer token with a live session
func authMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing bearer token",
			})
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func currentClaims(c *gin.Context) *service.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*service.Claims); ok {
			return claims
		}
	}
	return nil
}

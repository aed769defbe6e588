package api

import (
	"net/http"

	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) logout(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// forgotPassword always answers 200 so the endpoint does not reveal which
// emails have accounts
func (h *Handler) forgotPassword(c *gin.Context) {
	var req service.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "If the email is registered, reset instructions have been issued",
	})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req service.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), &req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

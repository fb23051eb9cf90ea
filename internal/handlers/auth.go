// Package handlers implements the agent's HTTP API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/middleware"
	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/services"
)

// AuthHandler handles HTTP requests for operator authentication.
type AuthHandler struct {
	authService  *services.AuthService
	auditService *services.AuditService
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(authService *services.AuthService, auditService *services.AuditService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		auditService: auditService,
	}
}

// Login authenticates an operator and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.authService.Login(req.Username, req.Password, req.TOTPCode)
	if err != nil {
		switch err {
		case services.ErrTOTPRequired:
			c.JSON(http.StatusOK, gin.H{"requires_totp": true})
		case services.ErrInvalidTOTPCode:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		default:
			if user, uerr := h.authService.GetUserByUsername(req.Username); uerr == nil {
				h.auditService.LogLogin(user, c.ClientIP(), c.GetHeader("User-Agent"), false)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		}
		return
	}

	if user, err := h.authService.GetUserByUsername(req.Username); err == nil {
		h.auditService.LogLogin(user, c.ClientIP(), c.GetHeader("User-Agent"), true)
	}

	c.SetCookie(
		middleware.SessionCookieName,
		session.ID,
		int(session.ExpiresAt.Unix()-session.CreatedAt.Unix()),
		"/",
		"",
		false,
		true,
	)

	c.JSON(http.StatusOK, gin.H{
		"message":    "login successful",
		"expires_at": session.ExpiresAt,
	})
}

// Logout destroys the current session.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(middleware.SessionCookieName)
	if err == nil && sessionID != "" {
		_ = h.authService.DeleteSession(sessionID)
	}

	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the current user's information.
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"is_admin":     user.IsAdmin,
		"totp_enabled": user.TOTPSecret != "",
	})
}

// EnableTOTP enrolls the current user's second factor and returns the
// otpauth URL for the authenticator app.
func (h *AuthHandler) EnableTOTP(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	url, err := h.authService.EnrollTOTP(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enroll totp"})
		return
	}

	_ = h.auditService.Log(services.AuditLog{
		UserID:       &user.ID,
		Username:     user.Username,
		Action:       "totp_enabled",
		ResourceType: "auth",
		IPAddress:    c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	})

	c.JSON(http.StatusOK, gin.H{"otpauth_url": url})
}

// DisableTOTP removes the current user's second factor.
func (h *AuthHandler) DisableTOTP(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.DisableTOTP(user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disable totp"})
		return
	}

	_ = h.auditService.Log(services.AuditLog{
		UserID:       &user.ID,
		Username:     user.Username,
		Action:       "totp_disabled",
		ResourceType: "auth",
		IPAddress:    c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	})

	c.JSON(http.StatusOK, gin.H{"message": "totp disabled"})
}

package handler

import (
	"net/http"

	"aquadash/internal/middleware"
	"aquadash/internal/sim"
	"aquadash/internal/token"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	Store        *sim.Store
	TokenConfig  token.Config
	LoginLimiter *middleware.LoginLimiter
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	key := middleware.LoginKey(c.ClientIP(), body.Username)
	if h.LoginLimiter != nil && !h.LoginLimiter.Allowed(key) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed login attempts"})
		return
	}

	user, ok := h.Store.Authenticate(body.Username, body.Password)
	if !ok {
		if h.LoginLimiter != nil {
			h.LoginLimiter.RecordFailure(key)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if h.LoginLimiter != nil {
		h.LoginLimiter.Reset(key)
	}

	signed, err := token.Encode(user, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token creation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed, "user": user})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := h.Store.CreateUser(body.Username, body.Email, body.Password, body.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, claims.User())
}

package handler

import (
	"net/http"
	"strconv"

	"aquadash/internal/middleware"
	"aquadash/internal/sim"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	Store *sim.Store
}

func (h *UserHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.Store.Users()})
}

func (h *UserHandler) MakeAdmin(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	user, ok := h.Store.MakeAdmin(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	if claims, ok := middleware.ClaimsFromContext(c); ok && claims.UserID == id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete your own account"})
		return
	}

	if !h.Store.DeleteUser(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

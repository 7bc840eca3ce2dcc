package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/querydesk/backend/internal/db"
	"github.com/querydesk/backend/internal/models"
	"github.com/querydesk/backend/internal/service"
)

type updateUserRequest struct {
	Role       *string   `json:"role" validate:"omitempty,oneof=user agent admin"`
	IsActive   *bool     `json:"is_active"`
	Skills     *[]string `json:"skills"`
	Experience *float64  `json:"experience" validate:"omitempty,gte=0,lte=60"`
	IsOnline   *bool     `json:"is_online"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok || !h.allowed(c, user, service.ActionUserManage, service.Resource{}) {
		return
	}
	role := c.Query("role")
	if role != "" && role != string(models.RoleUser) && role != string(models.RoleAgent) && role != string(models.RoleAdmin) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "unknown role", gin.H{"field": "role"})
		return
	}
	items, err := h.Store.ListUsers(c.Request.Context(), role)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list users", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// UpdateUser maintains the agent pool: role, activation, skills and availability.
func (h *Handler) UpdateUser(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok || !h.allowed(c, user, service.ActionUserManage, service.Resource{ID: c.Param("id")}) {
		return
	}
	var req updateUserRequest
	if !h.bind(c, &req) {
		return
	}
	patch := models.UserPatch{
		IsActive:   req.IsActive,
		Skills:     req.Skills,
		Experience: req.Experience,
		IsOnline:   req.IsOnline,
	}
	if req.Role != nil {
		r := models.Role(*req.Role)
		patch.Role = &r
	}

	updated, err := h.Store.UpdateUser(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update user", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/querydesk/backend/internal/db"
	"github.com/querydesk/backend/internal/http/middleware"
	"github.com/querydesk/backend/internal/models"
)

const bcryptCost = 12

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param body body registerRequest true "account"
// @Success 201 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Failed to hash password", nil)
		return
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     true,
		Skills:       []string{},
	}
	if err := h.Store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			writeError(c, http.StatusConflict, "CONFLICT", "Email already registered", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create user", err.Error())
		return
	}
	h.respondWithToken(c, http.StatusCreated, *user)
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "credentials"
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.Store.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load user", err.Error())
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
		return
	}
	if !user.IsActive {
		writeError(c, http.StatusForbidden, "FORBIDDEN", "Account is disabled", nil)
		return
	}
	h.respondWithToken(c, http.StatusOK, *user)
}

func (h *Handler) Me(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user models.User) {
	token, err := middleware.IssueToken(h.JWTSecret, user, h.JWTTTL, h.now())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Failed to issue token", nil)
		return
	}
	c.JSON(status, gin.H{"token": token, "user": user})
}

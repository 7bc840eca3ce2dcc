package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/querydesk/backend/internal/db"
	"github.com/querydesk/backend/internal/http/middleware"
	"github.com/querydesk/backend/internal/models"
	"github.com/querydesk/backend/internal/service"
)

type Store interface {
	Ping(ctx context.Context) error

	GetQuery(ctx context.Context, id string) (*models.Query, error)
	ListQueries(ctx context.Context, f db.QueryFilter) ([]models.Query, int, error)
	UpdateQuery(ctx context.Context, id string, patch models.QueryPatch) (*models.Query, error)
	DeleteQuery(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, role string) ([]models.User, error)
	UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)

	CreateNote(ctx context.Context, n *models.Note) error
	ListNotes(ctx context.Context, f db.NoteFilter) ([]models.Note, int, error)
}

type Ingester interface {
	Ingest(ctx context.Context, raw service.RawMessage) (service.IngestResult, error)
}

type ReplyGenerator interface {
	Reply(ctx context.Context, title, body string, tags []string) string
}

type Handler struct {
	Store     Store
	Pipeline  Ingester
	Assistant ReplyGenerator
	Validator *validator.Validate
	Logger    zerolog.Logger

	JWTSecret           string
	JWTTTL              time.Duration
	WhatsAppVerifyToken string

	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Liveness answers without touching dependencies.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// bind decodes the JSON body into dst and runs struct validation.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return false
	}
	if err := h.Validator.Struct(dst); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) any {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	out := make([]gin.H, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, gin.H{"field": fe.Field(), "rule": fe.Tag()})
	}
	return out
}

// actor returns the authenticated caller; routes behind Auth always have one.
func (h *Handler) actor(c *gin.Context) (models.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
	}
	return u, ok
}

func (h *Handler) allowed(c *gin.Context, u models.User, action service.Action, res service.Resource) bool {
	if service.Authorize(service.ActorFromUser(u), action, res) {
		return true
	}
	writeError(c, http.StatusForbidden, "FORBIDDEN", "Not allowed", string(action))
	return false
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(db.DefaultPageLimit)))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = db.DefaultPageLimit
	}
	if limit > db.MaxPageLimit {
		limit = db.MaxPageLimit
	}
	return page, limit
}

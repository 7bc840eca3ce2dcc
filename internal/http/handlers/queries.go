package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/querydesk/backend/internal/db"
	"github.com/querydesk/backend/internal/models"
	"github.com/querydesk/backend/internal/service"
)

type createQueryRequest struct {
	Title string `json:"title" validate:"required,max=250"`
	Body  string `json:"body" validate:"required"`
}

type updateQueryRequest struct {
	Title      *string   `json:"title" validate:"omitempty,max=250"`
	Body       *string   `json:"body"`
	Tags       *[]string `json:"tags"`
	Priority   *string   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status     *string   `json:"status" validate:"omitempty,oneof=open in_progress resolved closed"`
	AssignedTo *string   `json:"assigned_to"`
	ReplySent  *bool     `json:"reply_sent"`
}

// @Summary Create a query
// @Description Manual intake. Enrichment runs before the record is stored.
// @Tags queries
// @Accept json
// @Produce json
// @Param body body createQueryRequest true "query"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/queries [post]
func (h *Handler) CreateQuery(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok || !h.allowed(c, user, service.ActionQueryCreate, service.Resource{}) {
		return
	}
	var req createQueryRequest
	if !h.bind(c, &req) {
		return
	}

	sender := user.Email
	userID := user.ID
	res, err := h.Pipeline.Ingest(c.Request.Context(), service.RawMessage{
		Source:     models.SourceManual,
		Sender:     &sender,
		Title:      req.Title,
		Body:       req.Body,
		ReceivedAt: h.now(),
		UserID:     &userID,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", verr.Message, gin.H{"field": verr.Field})
			return
		}
		h.Logger.Error().Err(err).Str("user_id", user.ID).Msg("manual query ingest failed")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create query", nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": res.Query})
}

// @Summary List queries
// @Tags queries
// @Produce json
// @Param source query string false "email|whatsapp|manual"
// @Param tag query string false "tag"
// @Param status query string false "status"
// @Param priority query string false "priority"
// @Param q query string false "search text"
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Param sort query string false "sort key, prefix with - for descending"
// @Success 200 {object} map[string]any
// @Router /api/queries [get]
func (h *Handler) ListQueries(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok || !h.allowed(c, user, service.ActionQueryRead, service.Resource{}) {
		return
	}
	page, limit := pageParams(c)
	f := db.QueryFilter{
		Source:   c.Query("source"),
		Tag:      strings.TrimSpace(c.Query("tag")),
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Q:        strings.TrimSpace(c.Query("q")),
		Page:     page,
		Limit:    limit,
		Sort:     c.Query("sort"),
	}
	if !service.Authorize(service.ActorFromUser(user), service.ActionQueryListAll, service.Resource{}) {
		f.UserID = user.ID
	}

	items, total, err := h.Store.ListQueries(c.Request.Context(), f)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list queries", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "limit": limit})
}

func (h *Handler) GetQuery(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}
	q, ok := h.loadQuery(c)
	if !ok || !h.allowed(c, user, service.ActionQueryRead, queryResource(q)) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": q})
}

// @Summary Update a query
// @Tags queries
// @Accept json
// @Produce json
// @Param id path string true "query id"
// @Param body body updateQueryRequest true "fields to change"
// @Success 200 {object} map[string]any
// @Router /api/queries/{id} [patch]
func (h *Handler) UpdateQuery(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}
	q, ok := h.loadQuery(c)
	if !ok || !h.allowed(c, user, service.ActionQueryUpdate, queryResource(q)) {
		return
	}
	var req updateQueryRequest
	if !h.bind(c, &req) {
		return
	}

	patch := models.QueryPatch{
		Body:       req.Body,
		Tags:       req.Tags,
		AssignedTo: req.AssignedTo,
		ReplySent:  req.ReplySent,
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "title cannot be empty", gin.H{"field": "title"})
			return
		}
		patch.Title = &title
	}
	if req.Tags != nil {
		tags := normalizeTags(*req.Tags)
		patch.Tags = &tags
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		patch.Priority = &p
	}
	if req.Status != nil {
		s := models.Status(*req.Status)
		patch.Status = &s
	}

	updated, err := h.Store.UpdateQuery(c.Request.Context(), q.ID, patch)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Query not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update query", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (h *Handler) DeleteQuery(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}
	q, ok := h.loadQuery(c)
	if !ok || !h.allowed(c, user, service.ActionQueryDelete, queryResource(q)) {
		return
	}
	if err := h.Store.DeleteQuery(c.Request.Context(), q.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to delete query", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) loadQuery(c *gin.Context) (*models.Query, bool) {
	q, err := h.Store.GetQuery(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Query not found", nil)
			return nil, false
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load query", err.Error())
		return nil, false
	}
	return q, true
}

func queryResource(q *models.Query) service.Resource {
	res := service.Resource{ID: q.ID}
	if q.UserID != nil {
		res.OwnerID = *q.UserID
	}
	return res
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

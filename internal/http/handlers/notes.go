package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/querydesk/backend/internal/db"
	"github.com/querydesk/backend/internal/models"
	"github.com/querydesk/backend/internal/service"
)

type createNoteRequest struct {
	QueryID string `json:"query_id" validate:"required"`
	Content string `json:"content" validate:"required,max=2000"`
}

func (h *Handler) CreateNote(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok || !h.allowed(c, user, service.ActionNoteCreate, service.Resource{}) {
		return
	}
	var req createNoteRequest
	if !h.bind(c, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "content cannot be empty", gin.H{"field": "content"})
		return
	}
	if _, err := h.Store.GetQuery(c.Request.Context(), req.QueryID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Query not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load query", err.Error())
		return
	}

	note := &models.Note{
		ID:      uuid.NewString(),
		QueryID: req.QueryID,
		UserID:  user.ID,
		Content: content,
	}
	if err := h.Store.CreateNote(c.Request.Context(), note); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create note", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": note})
}

// ListNotes shows users their own notes only.
func (h *Handler) ListNotes(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	f := db.NoteFilter{QueryID: c.Query("query_id"), Page: page, Limit: limit}
	if !service.Authorize(service.ActorFromUser(user), service.ActionNoteListAll, service.Resource{}) {
		f.UserID = user.ID
	}
	items, total, err := h.Store.ListNotes(c.Request.Context(), f)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list notes", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "limit": limit})
}

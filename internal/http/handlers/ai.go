package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/querydesk/backend/internal/service"
)

type generateReplyRequest struct {
	Title string   `json:"title" validate:"required,max=250"`
	Body  string   `json:"body" validate:"required"`
	Tags  []string `json:"tags"`
}

// @Summary Draft a customer reply
// @Tags ai
// @Accept json
// @Produce json
// @Param body body generateReplyRequest true "query text"
// @Success 200 {object} map[string]string
// @Router /api/ai/generate [post]
func (h *Handler) GenerateReply(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok || !h.allowed(c, user, service.ActionAIGenerate, service.Resource{}) {
		return
	}
	var req generateReplyRequest
	if !h.bind(c, &req) {
		return
	}
	reply := h.Assistant.Reply(c.Request.Context(), req.Title, req.Body, req.Tags)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

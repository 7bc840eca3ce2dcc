package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/querydesk/backend/internal/models"
	"github.com/querydesk/backend/internal/service"
)

const whatsappTitle = "WhatsApp Message"

type whatsappPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []whatsappMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type whatsappMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (m whatsappMessage) receivedAt(fallback time.Time) time.Time {
	sec, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil || sec <= 0 {
		return fallback
	}
	return time.Unix(sec, 0).UTC()
}

// @Summary WhatsApp webhook verification
// @Tags whatsapp
// @Produce plain
// @Param hub.mode query string true "subscribe"
// @Param hub.verify_token query string true "shared secret"
// @Param hub.challenge query string true "echoed back"
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /webhook/whatsapp [get]
func (h *Handler) VerifyWhatsApp(c *gin.Context) {
	token := c.Query("hub.verify_token")
	if c.Query("hub.mode") != "subscribe" || h.WhatsAppVerifyToken == "" || token != h.WhatsAppVerifyToken {
		c.String(http.StatusForbidden, "forbidden")
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// ReceiveWhatsApp ingests every message in the payload. Messages are keyed by their wamid, so a
// redelivered payload only stores what failed the first time. Any persistence failure answers 500.
func (h *Handler) ReceiveWhatsApp(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable body", nil)
		return
	}
	var payload whatsappPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Malformed payload", nil)
		return
	}

	now := h.now()
	stored, failed := 0, 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				body := ""
				if msg.Text != nil {
					body = msg.Text.Body
				}
				from := msg.From
				in := service.RawMessage{
					Source:     models.SourceWhatsApp,
					Title:      whatsappTitle,
					Body:       body,
					Channel:    string(models.SourceWhatsApp),
					ReceivedAt: msg.receivedAt(now),
				}
				if from != "" {
					in.Sender = &from
				}
				if msg.ID != "" {
					id := msg.ID
					in.MessageID = &id
				}
				if _, err := h.Pipeline.Ingest(c.Request.Context(), in); err != nil {
					var verr *service.ValidationError
					if errors.As(err, &verr) {
						h.Logger.Warn().Err(err).Str("wa_message_id", msg.ID).Msg("dropping invalid whatsapp message")
						continue
					}
					h.Logger.Error().Err(err).Str("wa_message_id", msg.ID).Msg("whatsapp ingest failed")
					failed++
					continue
				}
				stored++
			}
		}
	}
	h.Logger.Info().Int("messages", stored).Int("failed", failed).Msg("whatsapp webhook processed")
	if failed > 0 {
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Failed to process message", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

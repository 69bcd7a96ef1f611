package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/service"
	"github.com/gin-gonic/gin"
)

// inboundEmailPayload accepts the JSON shape posted by inbound-mail providers.
// from may be an object {"email","name"} or a plain address string.
type inboundEmailPayload struct {
	From    json.RawMessage   `json:"from"`
	To      []json.RawMessage `json:"to"`
	Subject string            `json:"subject"`
	Text    string            `json:"text"`
	HTML    string            `json:"html"`
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HandleEmailReply records a user's reply to the daily check-in.
func (a *API) HandleEmailReply(c *gin.Context) {
	input, ok := readReplyInput(c)
	if !ok {
		return
	}

	result, err := a.replies.Ingest(c.Request.Context(), input)
	if err != nil {
		handleReplyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"message":         "Response recorded successfully",
		"user_email":      result.UserEmail,
		"log_date":        calendar.Key(result.LogDate),
		"response_length": result.ResponseLength,
	})
}

// ReplyHealth reports that the webhook is reachable.
func (a *API) ReplyHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "email-replies"})
}

func readReplyInput(c *gin.Context) (service.ReplyInput, bool) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var payload inboundEmailPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, http.StatusBadRequest, "invalid payload")
			return service.ReplyInput{}, false
		}
		return service.ReplyInput{
			From:    parseSender(payload.From),
			Subject: payload.Subject,
			Text:    payload.Text,
			HTML:    payload.HTML,
		}, true
	}

	return service.ReplyInput{
		From:    c.PostForm("from"),
		Subject: c.PostForm("subject"),
		Text:    c.PostForm("text"),
		HTML:    c.PostForm("html"),
	}, true
}

func parseSender(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var addr emailAddress
	if err := json.Unmarshal(raw, &addr); err == nil {
		if addr.Name != "" && addr.Email != "" {
			return (&mail.Address{Name: addr.Name, Address: addr.Email}).String()
		}
		return addr.Email
	}
	return ""
}

func handleReplyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSender), errors.Is(err, service.ErrInvalidEmail):
		respondError(c, http.StatusBadRequest, "invalid sender email")
	case errors.Is(err, service.ErrEmptyReply):
		respondError(c, http.StatusBadRequest, "empty response")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "user not found")
	default:
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "failed to record response")
	}
}

package handler

import (
	"errors"
	"net/http"

	"github.com/commitlog/dailyagent/internal/service"
	"github.com/gin-gonic/gin"
)

type verifyPayload struct {
	Email       string `json:"email"`
	Date        string `json:"date"`
	MinRequired int    `json:"min_required"`
	Notify      bool   `json:"notify"`
}

type verifyAllPayload struct {
	Date string `json:"date"`
}

type checkinPayload struct {
	Force bool `json:"force"`
}

type verifyResponse struct {
	service.VerificationResult
	SummarySent *bool `json:"summary_sent,omitempty"`
}

// VerifyUser runs verification for one user and day. Verification errors
// come back as 502 with the result body so callers can see what failed.
func (a *API) VerifyUser(c *gin.Context) {
	var payload verifyPayload
	if !bindJSON(c, &payload, "invalid payload") {
		return
	}

	date, err := parseOptionalDate(payload.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if payload.MinRequired < 0 {
		respondError(c, http.StatusBadRequest, "min_required must be positive")
		return
	}

	ctx := c.Request.Context()
	user, err := a.users.GetActiveByEmail(ctx, payload.Email)
	if err != nil {
		handleUserError(c, err)
		return
	}

	opts := service.VerifyOptions{Date: date, MinRequired: payload.MinRequired}
	response := verifyResponse{}
	if payload.Notify {
		result, notifyErr := a.verifier.VerifyAndNotify(ctx, *user, opts)
		sent := notifyErr == nil
		response.VerificationResult = result
		response.SummarySent = &sent
	} else {
		response.VerificationResult = a.verifier.VerifyUserDay(ctx, *user, opts)
	}

	status := http.StatusOK
	if !response.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, response)
}

// VerifyAll runs the batch over all active users.
func (a *API) VerifyAll(c *gin.Context) {
	var payload verifyAllPayload
	if !bindJSON(c, &payload, "invalid payload") {
		return
	}

	date, err := parseOptionalDate(payload.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	batch := a.verifier.VerifyAllUsers(c.Request.Context(), date)
	if batch.Error != "" {
		c.JSON(http.StatusInternalServerError, batch)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// SendCheckins dispatches today's check-in emails.
func (a *API) SendCheckins(c *gin.Context) {
	var payload checkinPayload
	if !bindJSON(c, &payload, "invalid payload") {
		return
	}

	batch := a.checkins.SendDailyCheckins(c.Request.Context(), payload.Force)
	if batch.Error != "" {
		c.JSON(http.StatusInternalServerError, batch)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func handleUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		respondError(c, http.StatusBadRequest, "invalid email")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "user not found")
	default:
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

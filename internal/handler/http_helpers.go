package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// bindJSON treats an empty body as an empty payload so optional-only
// requests can omit it.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseOptionalDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return calendar.Parse(raw)
}

// parseBoundedQuery reads a positive integer query value, clamped to max.
func parseBoundedQuery(c *gin.Context, key string, fallback, max int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		respondError(c, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	if value > max {
		value = max
	}
	return value, true
}

package handler

import (
	"net/http"
	"time"

	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/db"
	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 90
)

type dailyLogView struct {
	Date                    string     `json:"date"`
	Status                  string     `json:"status"`
	CommitsCount            int        `json:"commits_count"`
	PRsCount                int        `json:"prs_count"`
	IssuesCount             int        `json:"issues_count"`
	TotalActivity           int        `json:"total_activity"`
	UserResponse            *string    `json:"user_response"`
	CheckinSentAt           *time.Time `json:"checkin_sent_at"`
	UserRespondedAt         *time.Time `json:"user_responded_at"`
	VerificationCompletedAt *time.Time `json:"verification_completed_at"`
	SummarySentAt           *time.Time `json:"summary_sent_at"`
}

// GetUserStats returns pass rate and activity totals for recent days.
func (a *API) GetUserStats(c *gin.Context) {
	days, ok := parseBoundedQuery(c, "days", defaultHistoryDays, maxHistoryDays)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := a.users.GetActiveByEmail(ctx, c.Param("email"))
	if err != nil {
		handleUserError(c, err)
		return
	}

	stats, err := a.verifier.UserStats(ctx, *user, days)
	if err != nil {
		handleUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetUserLogs lists the most recent daily records, newest first.
func (a *API) GetUserLogs(c *gin.Context) {
	limit, ok := parseBoundedQuery(c, "limit", defaultHistoryDays, maxHistoryDays)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := a.users.GetActiveByEmail(ctx, c.Param("email"))
	if err != nil {
		handleUserError(c, err)
		return
	}

	logs, err := a.logs.GetRecent(ctx, user.ID, limit)
	if err != nil {
		handleUserError(c, err)
		return
	}

	views := make([]dailyLogView, 0, len(logs))
	for _, record := range logs {
		views = append(views, toDailyLogView(record))
	}
	c.JSON(http.StatusOK, gin.H{"user_email": user.Email, "logs": views})
}

func toDailyLogView(record db.DailyLog) dailyLogView {
	return dailyLogView{
		Date:                    calendar.Key(record.LogDate),
		Status:                  record.Status(),
		CommitsCount:            record.CommitsCount,
		PRsCount:                record.PRsCount,
		IssuesCount:             record.IssuesCount,
		TotalActivity:           record.TotalActivity(),
		UserResponse:            record.UserResponse,
		CheckinSentAt:           record.CheckinSentAt,
		UserRespondedAt:         record.UserRespondedAt,
		VerificationCompletedAt: record.VerificationCompletedAt,
		SummarySentAt:           record.SummarySentAt,
	}
}

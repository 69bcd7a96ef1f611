package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/commitlog/dailyagent/internal/activity"
	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/db"
	"github.com/commitlog/dailyagent/internal/secret"
	"github.com/commitlog/dailyagent/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 2025-01-15 is a Wednesday; 15:00 UTC is 10:00 in New York.
var testNow = time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC)

type fakeSource struct {
	commits []activity.Commit
}

func (s *fakeSource) Login(context.Context) (string, error) { return "octocat", nil }

func (s *fakeSource) ListRepositories(context.Context) ([]activity.Repository, error) {
	return []activity.Repository{{Owner: "octo", Name: "app", FullName: "octo/app"}}, nil
}

func (s *fakeSource) ListCommits(context.Context, activity.Repository, activity.CommitQuery) ([]activity.Commit, error) {
	return s.commits, nil
}

func (s *fakeSource) ListPullRequests(context.Context, activity.Repository, activity.PullRequestQuery) ([]activity.PullRequest, error) {
	return nil, nil
}

func (s *fakeSource) ListIssues(context.Context, activity.Repository, activity.IssueQuery) ([]activity.Issue, error) {
	return nil, nil
}

type fakeConnector struct {
	source *fakeSource
	err    error
}

func (c *fakeConnector) Connect(context.Context, string) (activity.Source, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.source, nil
}

type nopNotifier struct {
	summaries int
	checkins  int
}

func (n *nopNotifier) SendCheckin(context.Context, service.CheckinMessage) error {
	n.checkins++
	return nil
}

func (n *nopNotifier) SendSummary(context.Context, service.SummaryMessage) error {
	n.summaries++
	return nil
}

type testEnv struct {
	engine    *gin.Engine
	gdb       *gorm.DB
	users     *service.UserService
	logs      *service.DailyLogService
	connector *fakeConnector
	notifier  *nopNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	box, err := secret.NewBox("")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	resolver := calendar.NewResolver("America/New_York", zap.NewNop())
	users := service.NewUserService(gdb, box, "America/New_York")
	logs := service.NewDailyLogService(gdb)
	connector := &fakeConnector{source: &fakeSource{}}
	notifier := &nopNotifier{}

	replies := service.NewReplyService(users, logs, resolver, zap.NewNop())
	replies.SetClock(func() time.Time { return testNow })
	verifier := service.NewVerificationService(service.VerificationDeps{
		Logs:        logs,
		Users:       users,
		Connector:   connector,
		Aggregator:  activity.NewAggregator(resolver, zap.NewNop()),
		Notifier:    notifier,
		Resolver:    resolver,
		MinRequired: 1,
	})
	verifier.SetClock(func() time.Time { return testNow })
	checkins := service.NewCheckinService(users, logs, notifier, resolver, zap.NewNop())
	checkins.SetClock(func() time.Time { return testNow })

	api := NewAPI(gdb, Services{
		Users:    users,
		Logs:     logs,
		Replies:  replies,
		Verifier: verifier,
		Checkins: checkins,
	}, AppInfo{Name: "Personal AI Agent", Version: "test"})

	r := gin.New()
	r.GET("/", api.Root)
	r.GET("/health", api.HealthCheck)
	r.POST("/api/replies/email", api.HandleEmailReply)
	r.GET("/api/replies/health", api.ReplyHealth)
	r.POST("/api/verify", api.VerifyUser)
	r.POST("/api/verify/all", api.VerifyAll)
	r.POST("/api/checkins", api.SendCheckins)
	r.GET("/api/users/:email/stats", api.GetUserStats)
	r.GET("/api/users/:email/logs", api.GetUserLogs)

	return &testEnv{
		engine:    r,
		gdb:       gdb,
		users:     users,
		logs:      logs,
		connector: connector,
		notifier:  notifier,
	}
}

func (e *testEnv) seed(t *testing.T, email, username string) db.User {
	t.Helper()
	user, _, err := e.users.Provision(context.Background(), service.ProvisionInput{
		Email:          email,
		GitHubUsername: username,
		GitHubToken:    "ghp_" + username,
		TimeZone:       "America/New_York",
	})
	if err != nil {
		t.Fatalf("provision %s: %v", email, err)
	}
	return *user
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

// commitsAtNoon builds n commits at noon New York time on date.
func commitsAtNoon(t *testing.T, date time.Time, n int) []activity.Commit {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	y, m, d := date.Date()
	out := make([]activity.Commit, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, activity.Commit{
			SHA:        fmt.Sprintf("sha-%d", i),
			Repository: "octo/app",
			Date:       time.Date(y, m, d, 12, i, 0, 0, loc),
		})
	}
	return out
}

var errBadCredentials = errors.New("401 bad credentials")

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/commitlog/dailyagent/internal/activity"
	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/db"
	"github.com/commitlog/dailyagent/internal/secret"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	return gdb
}

func newTestUserService(t *testing.T, gdb *gorm.DB) *UserService {
	t.Helper()
	box, err := secret.NewBox("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	return NewUserService(gdb, box, "America/New_York")
}

func seedUser(t *testing.T, users *UserService, email, username, zone string) db.User {
	t.Helper()
	user, _, err := users.Provision(context.Background(), ProvisionInput{
		Email:          email,
		GitHubUsername: username,
		GitHubToken:    "token-" + username,
		TimeZone:       zone,
	})
	if err != nil {
		t.Fatalf("provision %s: %v", email, err)
	}
	return *user
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// stubSource returns a fixed set of commits for a single repository.
type stubSource struct {
	commits []activity.Commit
}

func (s *stubSource) Login(context.Context) (string, error) { return "stub", nil }

func (s *stubSource) ListRepositories(context.Context) ([]activity.Repository, error) {
	return []activity.Repository{{Owner: "octo", Name: "app", FullName: "octo/app"}}, nil
}

func (s *stubSource) ListCommits(context.Context, activity.Repository, activity.CommitQuery) ([]activity.Commit, error) {
	return s.commits, nil
}

func (s *stubSource) ListPullRequests(context.Context, activity.Repository, activity.PullRequestQuery) ([]activity.PullRequest, error) {
	return nil, nil
}

func (s *stubSource) ListIssues(context.Context, activity.Repository, activity.IssueQuery) ([]activity.Issue, error) {
	return nil, nil
}

// stubConnector maps tokens to sources; tokens listed in fail are rejected
// and tokens listed in panics blow up.
type stubConnector struct {
	mu      sync.Mutex
	sources map[string]activity.Source
	fail    map[string]bool
	panics  map[string]bool
	tokens  []string
}

func newStubConnector() *stubConnector {
	return &stubConnector{
		sources: make(map[string]activity.Source),
		fail:    make(map[string]bool),
		panics:  make(map[string]bool),
	}
}

func (c *stubConnector) Connect(_ context.Context, token string) (activity.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = append(c.tokens, token)
	if c.panics[token] {
		panic("connector exploded")
	}
	if c.fail[token] {
		return nil, errors.New("401 bad credentials")
	}
	if src, ok := c.sources[token]; ok {
		return src, nil
	}
	return &stubSource{}, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	checkins  []CheckinMessage
	summaries []SummaryMessage
	failFor   map[string]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{failFor: make(map[string]bool)}
}

func (n *recordingNotifier) SendCheckin(_ context.Context, msg CheckinMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[msg.To] {
		return errors.New("smtp unavailable")
	}
	n.checkins = append(n.checkins, msg)
	return nil
}

func (n *recordingNotifier) SendSummary(_ context.Context, msg SummaryMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[msg.To] {
		return errors.New("smtp unavailable")
	}
	n.summaries = append(n.summaries, msg)
	return nil
}

type verificationFixture struct {
	gdb       *gorm.DB
	users     *UserService
	logs      *DailyLogService
	connector *stubConnector
	notifier  *recordingNotifier
	service   *VerificationService
}

func newVerificationFixture(t *testing.T, minRequired int) *verificationFixture {
	t.Helper()
	gdb := setupServiceDB(t)
	resolver := calendar.NewResolver("America/New_York", zap.NewNop())

	f := &verificationFixture{
		gdb:       gdb,
		users:     newTestUserService(t, gdb),
		logs:      NewDailyLogService(gdb),
		connector: newStubConnector(),
		notifier:  newRecordingNotifier(),
	}
	f.service = NewVerificationService(VerificationDeps{
		Logs:        f.logs,
		Users:       f.users,
		Connector:   f.connector,
		Aggregator:  activity.NewAggregator(resolver, zap.NewNop()),
		Notifier:    f.notifier,
		Resolver:    resolver,
		MinRequired: minRequired,
		Logger:      zap.NewNop(),
	})
	return f
}

// commitsOn builds n commits at noon New York time on date.
func commitsOn(t *testing.T, date time.Time, n int) []activity.Commit {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	y, m, d := date.Date()
	commits := make([]activity.Commit, 0, n)
	for i := 0; i < n; i++ {
		commits = append(commits, activity.Commit{
			SHA:        fmt.Sprintf("sha-%d", i),
			Repository: "octo/app",
			Date:       time.Date(y, m, d, 12, i, 0, 0, loc),
		})
	}
	return commits
}

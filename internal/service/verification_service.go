package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/commitlog/dailyagent/internal/activity"
	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusVerificationError 表示本次验证未能完成，记录保持原状
const StatusVerificationError = "verification-error"

// ErrSummaryNotSent 在验证成功但总结邮件发送失败时返回
var ErrSummaryNotSent = errors.New("summary email not sent")

// VerificationResult 是一次验证的结果，也是 /api/verify 的响应体
type VerificationResult struct {
	Success       bool               `json:"success"`
	Passed        bool               `json:"passed"`
	Status        string             `json:"status"`
	UserEmail     string             `json:"user_email"`
	Date          string             `json:"date"`
	MinRequired   int                `json:"min_required"`
	CommitsCount  int                `json:"commits_count"`
	PRsCount      int                `json:"prs_count"`
	IssuesCount   int                `json:"issues_count"`
	TotalActivity int                `json:"total_activity"`
	Repositories  []string           `json:"repositories"`
	UserResponse  string             `json:"user_response,omitempty"`
	Details       *activity.Snapshot `json:"details,omitempty"`
	DailyLogID    uint               `json:"daily_log_id,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// VerifyOptions 零值表示“用户本地的今天”和配置中的默认阈值
type VerifyOptions struct {
	Date        time.Time
	MinRequired int
}

// UserResult 是批量验证中单个用户的结果
type UserResult struct {
	UserEmail   string `json:"user_email"`
	Date        string `json:"date"`
	Success     bool   `json:"success"`
	Passed      bool   `json:"passed"`
	SummarySent bool   `json:"summary_sent"`
	Error       string `json:"error,omitempty"`
}

// BatchResult 汇总一次批量验证
type BatchResult struct {
	RunID       string       `json:"run_id"`
	Date        string       `json:"date,omitempty"`
	TotalUsers  int          `json:"total_users"`
	Successful  int          `json:"successful"`
	Failed      int          `json:"failed"`
	Passed      int          `json:"passed"`
	NotPassed   int          `json:"not_passed"`
	UserResults []UserResult `json:"user_results"`
	Error       string       `json:"error,omitempty"`
}

// UserStats 汇总最近若干天的验证情况
type UserStats struct {
	UserEmail        string  `json:"user_email"`
	PeriodDays       int     `json:"period_days"`
	TotalDaysChecked int     `json:"total_days_checked"`
	PassedDays       int     `json:"passed_days"`
	FailedDays       int     `json:"failed_days"`
	PassRate         float64 `json:"pass_rate"`
	TotalCommits     int     `json:"total_commits"`
	TotalPRs         int     `json:"total_prs"`
	TotalIssues      int     `json:"total_issues"`
	AvgCommitsPerDay float64 `json:"avg_commits_per_day"`
	RespondedDays    int     `json:"responded_days"`
}

// VerificationDeps 是 VerificationService 的依赖
type VerificationDeps struct {
	Logs        *DailyLogService
	Users       *UserService
	Connector   activity.Connector
	Aggregator  *activity.Aggregator
	Notifier    Notifier
	Resolver    *calendar.Resolver
	MinRequired int
	Logger      *zap.Logger
}

// VerificationService 对照 GitHub 活动验证用户每天的承诺
type VerificationService struct {
	logs        *DailyLogService
	users       *UserService
	connector   activity.Connector
	aggregator  *activity.Aggregator
	notifier    Notifier
	resolver    *calendar.Resolver
	minRequired int
	logger      *zap.Logger
	now         func() time.Time
}

// NewVerificationService 构造 VerificationService
func NewVerificationService(deps VerificationDeps) *VerificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minRequired := deps.MinRequired
	if minRequired < 1 {
		minRequired = 1
	}
	return &VerificationService{
		logs:        deps.Logs,
		users:       deps.Users,
		connector:   deps.Connector,
		aggregator:  deps.Aggregator,
		notifier:    deps.Notifier,
		resolver:    deps.Resolver,
		minRequired: minRequired,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock 替换当前时间来源，测试用
func (s *VerificationService) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// VerifyUserDay 拉取用户当天的活动并写入记录。
// 连接失败时记录保持原状并返回 Success=false；重复调用以最新结果覆盖。
func (s *VerificationService) VerifyUserDay(ctx context.Context, user db.User, opts VerifyOptions) VerificationResult {
	date := s.resolveDate(user, opts.Date)
	minRequired := opts.MinRequired
	if minRequired < 1 {
		minRequired = s.minRequired
	}

	log := s.logger.With(zap.String("user", user.Email), zap.String("date", calendar.Key(date)))
	result := VerificationResult{
		Status:       db.StatusUnverified,
		UserEmail:    user.Email,
		Date:         calendar.Key(date),
		MinRequired:  minRequired,
		Repositories: []string{},
	}

	record, err := s.logs.GetOrCreate(ctx, user.ID, date)
	if err != nil {
		log.Error("load daily log failed", zap.Error(err))
		return failed(result, err)
	}
	result.DailyLogID = record.ID
	result.UserResponse = record.Response()

	token, err := s.users.Credential(user)
	if err != nil {
		log.Error("read credential failed", zap.Error(err))
		return failed(result, err)
	}

	source, err := s.connector.Connect(ctx, token)
	if err != nil {
		log.Warn("activity source unavailable", zap.Error(err))
		return failed(result, fmt.Errorf("connect activity source: %w", err))
	}

	snap := s.aggregator.Aggregate(ctx, source, activity.Request{
		Username: user.GitHubUsername,
		TimeZone: user.TimeZone,
		Date:     date,
	})
	passed := snap.TotalActivity >= minRequired

	updated, err := s.logs.RecordVerification(ctx, record.ID, snap, passed, s.now())
	if err != nil {
		log.Error("persist verification failed", zap.Error(err))
		return failed(result, err)
	}

	result.Success = true
	result.Passed = passed
	result.Status = updated.Status()
	result.CommitsCount = snap.CommitsCount
	result.PRsCount = snap.PRsCount
	result.IssuesCount = snap.IssuesCount
	result.TotalActivity = snap.TotalActivity
	result.Repositories = snap.Repositories
	result.UserResponse = updated.Response()
	result.Details = &snap

	log.Info("verification completed",
		zap.Bool("passed", passed),
		zap.Int("total_activity", snap.TotalActivity),
		zap.Int("min_required", minRequired),
	)
	return result
}

// VerifyAndNotify 验证后发送总结邮件，发送成功才写入 summary_sent_at
func (s *VerificationService) VerifyAndNotify(ctx context.Context, user db.User, opts VerifyOptions) (VerificationResult, error) {
	result := s.VerifyUserDay(ctx, user, opts)
	if !result.Success {
		return result, fmt.Errorf("verify %s: %s", user.Email, result.Error)
	}

	date, err := calendar.Parse(result.Date)
	if err != nil {
		return result, err
	}

	if err := s.notifier.SendSummary(ctx, SummaryMessage{To: user.Email, Date: date, Result: result}); err != nil {
		s.logger.Error("send summary failed", zap.String("user", user.Email), zap.Error(err))
		return result, fmt.Errorf("%w: %v", ErrSummaryNotSent, err)
	}

	if err := s.logs.MarkSummarySent(ctx, result.DailyLogID, s.now()); err != nil {
		return result, err
	}
	return result, nil
}

// VerifyAllUsers 依次处理每个活跃用户。单个用户的错误或 panic 只计入失败，不影响其他人。
// date 为零值时每个用户使用自己时区里的今天。
func (s *VerificationService) VerifyAllUsers(ctx context.Context, date time.Time) BatchResult {
	batch := BatchResult{
		RunID:       uuid.NewString(),
		UserResults: []UserResult{},
	}
	if !date.IsZero() {
		batch.Date = calendar.Key(date)
	}
	log := s.logger.With(zap.String("run_id", batch.RunID))

	users, err := s.users.ListActive(ctx)
	if err != nil {
		log.Error("list active users failed", zap.Error(err))
		batch.Error = err.Error()
		return batch
	}
	batch.TotalUsers = len(users)
	log.Info("batch verification started", zap.Int("users", len(users)))

	for _, user := range users {
		outcome := s.verifyOne(ctx, user, date)
		batch.UserResults = append(batch.UserResults, outcome)

		if outcome.Success && outcome.SummarySent {
			batch.Successful++
			if outcome.Passed {
				batch.Passed++
			} else {
				batch.NotPassed++
			}
		} else {
			batch.Failed++
		}
	}

	log.Info("batch verification finished",
		zap.Int("successful", batch.Successful),
		zap.Int("failed", batch.Failed),
		zap.Int("passed", batch.Passed),
		zap.Int("not_passed", batch.NotPassed),
	)
	return batch
}

func (s *VerificationService) verifyOne(ctx context.Context, user db.User, date time.Time) (outcome UserResult) {
	outcome = UserResult{UserEmail: user.Email}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("verification panicked", zap.String("user", user.Email), zap.Any("panic", r))
			outcome.Success = false
			outcome.SummarySent = false
			outcome.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	result, err := s.VerifyAndNotify(ctx, user, VerifyOptions{Date: date})
	outcome.Date = result.Date
	outcome.Success = result.Success
	outcome.Passed = result.Passed
	outcome.SummarySent = err == nil
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}

// UserStats 统计最近 days 条记录，只有跑过验证的记录计入通过率
func (s *VerificationService) UserStats(ctx context.Context, user db.User, days int) (*UserStats, error) {
	if days <= 0 {
		days = 7
	}
	logs, err := s.logs.GetRecent(ctx, user.ID, days)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{UserEmail: user.Email, PeriodDays: days}
	for _, record := range logs {
		if record.UserResponse != nil {
			stats.RespondedDays++
		}
		if record.VerificationPassed == nil {
			continue
		}
		stats.TotalDaysChecked++
		if *record.VerificationPassed {
			stats.PassedDays++
		} else {
			stats.FailedDays++
		}
		stats.TotalCommits += record.CommitsCount
		stats.TotalPRs += record.PRsCount
		stats.TotalIssues += record.IssuesCount
	}

	if stats.TotalDaysChecked > 0 {
		stats.PassRate = round2(float64(stats.PassedDays) / float64(stats.TotalDaysChecked) * 100)
		stats.AvgCommitsPerDay = round2(float64(stats.TotalCommits) / float64(stats.TotalDaysChecked))
	}
	return stats, nil
}

func (s *VerificationService) resolveDate(user db.User, date time.Time) time.Time {
	if date.IsZero() {
		return s.resolver.Today(user.TimeZone, s.now())
	}
	return calendar.Normalize(date)
}

func failed(result VerificationResult, err error) VerificationResult {
	result.Success = false
	result.Passed = false
	result.Status = StatusVerificationError
	result.Error = err.Error()
	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

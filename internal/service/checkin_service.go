package service

import (
	"context"
	"fmt"
	"time"

	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 单个用户的提醒结果
const (
	CheckinSent           = "sent"
	CheckinSkippedWeekend = "skipped-weekend"
	CheckinSkippedAlready = "skipped-already-sent"
	CheckinFailed         = "failed"
)

// CheckinUserResult 单个用户的提醒结果
type CheckinUserResult struct {
	UserEmail string `json:"user_email"`
	Date      string `json:"date"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

// CheckinBatchResult 汇总一次提醒发送
type CheckinBatchResult struct {
	RunID      string              `json:"run_id"`
	TotalUsers int                 `json:"total_users"`
	Sent       int                 `json:"sent"`
	Skipped    int                 `json:"skipped"`
	Failed     int                 `json:"failed"`
	Results    []CheckinUserResult `json:"results"`
	Error      string              `json:"error,omitempty"`
}

// CheckinService 给每个活跃用户发当天的提醒邮件
type CheckinService struct {
	users    *UserService
	logs     *DailyLogService
	notifier Notifier
	resolver *calendar.Resolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewCheckinService 构造 CheckinService
func NewCheckinService(users *UserService, logs *DailyLogService, notifier Notifier, resolver *calendar.Resolver, logger *zap.Logger) *CheckinService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckinService{
		users:    users,
		logs:     logs,
		notifier: notifier,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock 替换当前时间来源，测试用
func (s *CheckinService) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// SendDailyCheckins 按用户本地日期判断是否工作日；force 跳过工作日判断但不会重复发送。
func (s *CheckinService) SendDailyCheckins(ctx context.Context, force bool) CheckinBatchResult {
	batch := CheckinBatchResult{RunID: uuid.NewString(), Results: []CheckinUserResult{}}
	log := s.logger.With(zap.String("run_id", batch.RunID))

	users, err := s.users.ListActive(ctx)
	if err != nil {
		log.Error("list active users failed", zap.Error(err))
		batch.Error = err.Error()
		return batch
	}
	batch.TotalUsers = len(users)

	for _, user := range users {
		result := s.SendCheckin(ctx, user, force)
		batch.Results = append(batch.Results, result)
		switch result.Outcome {
		case CheckinSent:
			batch.Sent++
		case CheckinFailed:
			batch.Failed++
		default:
			batch.Skipped++
		}
	}

	log.Info("checkins dispatched",
		zap.Int("users", batch.TotalUsers),
		zap.Int("sent", batch.Sent),
		zap.Int("skipped", batch.Skipped),
		zap.Int("failed", batch.Failed),
	)
	return batch
}

// SendCheckin 处理单个用户
func (s *CheckinService) SendCheckin(ctx context.Context, user db.User, force bool) (result CheckinUserResult) {
	today := s.resolver.Today(user.TimeZone, s.now())
	result = CheckinUserResult{UserEmail: user.Email, Date: calendar.Key(today)}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("checkin panicked", zap.String("user", user.Email), zap.Any("panic", r))
			result.Outcome = CheckinFailed
			result.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if !force && !calendar.IsWeekday(today) {
		result.Outcome = CheckinSkippedWeekend
		return result
	}

	record, err := s.logs.GetOrCreate(ctx, user.ID, today)
	if err != nil {
		return checkinFailed(result, err)
	}
	if record.CheckinSentAt != nil {
		result.Outcome = CheckinSkippedAlready
		return result
	}

	if err := s.notifier.SendCheckin(ctx, CheckinMessage{To: user.Email, Date: today}); err != nil {
		s.logger.Error("send checkin failed", zap.String("user", user.Email), zap.Error(err))
		return checkinFailed(result, err)
	}
	if err := s.logs.MarkCheckinSent(ctx, record.ID, s.now()); err != nil {
		return checkinFailed(result, err)
	}

	result.Outcome = CheckinSent
	return result
}

func checkinFailed(result CheckinUserResult, err error) CheckinUserResult {
	result.Outcome = CheckinFailed
	result.Error = err.Error()
	return result
}

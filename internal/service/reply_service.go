package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var (
	// ErrInvalidSender 发件人地址无法解析
	ErrInvalidSender = errors.New("invalid sender address")
	// ErrEmptyReply 正文为空
	ErrEmptyReply = errors.New("reply has no content")
)

var (
	blockBoundary = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|tr|h[1-6]|blockquote)>`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// ReplyInput 是入站邮件 webhook 中与回复相关的字段
type ReplyInput struct {
	From    string
	Subject string
	Text    string
	HTML    string
}

// ReplyResult 描述一次成功写入的回复
type ReplyResult struct {
	UserEmail      string    `json:"user_email"`
	LogDate        time.Time `json:"log_date"`
	ResponseLength int       `json:"response_length"`
	DailyLogID     uint      `json:"daily_log_id"`
}

// ReplyService 把用户的邮件回复写入当天的记录
type ReplyService struct {
	users    *UserService
	logs     *DailyLogService
	resolver *calendar.Resolver
	logger   *zap.Logger
	now      func() time.Time
	strip    *bluemonday.Policy
}

// NewReplyService 构造 ReplyService
func NewReplyService(users *UserService, logs *DailyLogService, resolver *calendar.Resolver, logger *zap.Logger) *ReplyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplyService{
		users:    users,
		logs:     logs,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
		strip:    bluemonday.StrictPolicy(),
	}
}

// SetClock 替换当前时间来源，测试用
func (s *ReplyService) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// Ingest 识别发件人并写入回复。回复归属于发件人本地时区里“收到时的那一天”，
// 与提醒邮件是哪天发出的无关。
func (s *ReplyService) Ingest(ctx context.Context, input ReplyInput) (*ReplyResult, error) {
	sender, err := NormalizeEmail(input.From)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSender, input.From)
	}

	user, err := s.users.GetActiveByEmail(ctx, sender)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("reply from unknown sender", zap.String("from", sender))
		}
		return nil, err
	}

	body := s.ExtractBody(input.Text, input.HTML)
	if body == "" {
		return nil, ErrEmptyReply
	}

	arrived := s.now()
	logDate := s.resolver.Today(user.TimeZone, arrived)

	record, err := s.logs.GetOrCreate(ctx, user.ID, logDate)
	if err != nil {
		return nil, err
	}
	if err := s.logs.RecordReply(ctx, record.ID, body, arrived); err != nil {
		return nil, err
	}

	s.logger.Info("reply recorded",
		zap.String("user", user.Email),
		zap.String("date", calendar.Key(logDate)),
		zap.String("subject", strings.TrimSpace(input.Subject)),
		zap.Int("length", len(body)),
	)

	return &ReplyResult{
		UserEmail:      user.Email,
		LogDate:        logDate,
		ResponseLength: len(body),
		DailyLogID:     record.ID,
	}, nil
}

// ExtractBody 优先使用纯文本，没有时把 HTML 转成纯文本
func (s *ReplyService) ExtractBody(text, htmlBody string) string {
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		return trimmed
	}
	if strings.TrimSpace(htmlBody) == "" {
		return ""
	}

	withBreaks := blockBoundary.ReplaceAllStringFunc(htmlBody, func(tag string) string {
		return tag + "\n"
	})
	plain := html.UnescapeString(s.strip.Sanitize(withBreaks))

	lines := strings.Split(plain, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	plain = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(plain)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/commitlog/dailyagent/internal/activity"
	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrDailyLogNotFound 在指定日期没有记录时返回
	ErrDailyLogNotFound = errors.New("daily log not found")
	// ErrDailyLogExists 在 (user, date) 已存在记录时返回
	ErrDailyLogExists = errors.New("daily log already exists for this date")
)

// DailyLogService 负责每日记录的读写。
// 每个写方法只更新自己负责的列，回复、验证、发信三条流程可以并发写同一行而互不覆盖。
type DailyLogService struct {
	db *gorm.DB
}

// NewDailyLogService 构造 DailyLogService
func NewDailyLogService(gdb *gorm.DB) *DailyLogService {
	return &DailyLogService{db: gdb}
}

// GetByDate 读取某用户某天的记录
func (s *DailyLogService) GetByDate(ctx context.Context, userID uint, date time.Time) (*db.DailyLog, error) {
	var record db.DailyLog
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND log_date = ?", userID, calendar.Normalize(date)).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDailyLogNotFound
		}
		return nil, fmt.Errorf("get daily log: %w", err)
	}
	return &record, nil
}

// Create 插入新记录，同一天重复插入返回 ErrDailyLogExists
func (s *DailyLogService) Create(ctx context.Context, userID uint, date time.Time) (*db.DailyLog, error) {
	record := db.DailyLog{UserID: userID, LogDate: calendar.Normalize(date)}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDailyLogExists
		}
		return nil, fmt.Errorf("create daily log: %w", err)
	}
	return &record, nil
}

// GetOrCreate 先读后插；插入撞上唯一索引说明另一个写入方先到了，重新读取它的那一行。
func (s *DailyLogService) GetOrCreate(ctx context.Context, userID uint, date time.Time) (*db.DailyLog, error) {
	record, err := s.GetByDate(ctx, userID, date)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrDailyLogNotFound) {
		return nil, err
	}
	return s.createOrLoad(ctx, userID, date)
}

func (s *DailyLogService) createOrLoad(ctx context.Context, userID uint, date time.Time) (*db.DailyLog, error) {
	record, err := s.Create(ctx, userID, date)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrDailyLogExists) {
		return nil, err
	}

	record, err = s.GetByDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("reload daily log after conflict: %w", err)
	}
	return record, nil
}

// GetRecent 返回最近 limit 条记录，按日期倒序
func (s *DailyLogService) GetRecent(ctx context.Context, userID uint, limit int) ([]db.DailyLog, error) {
	if limit <= 0 {
		limit = 7
	}

	var logs []db.DailyLog
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("log_date DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list recent daily logs: %w", err)
	}
	return logs, nil
}

// MarkCheckinSent 记录提醒邮件发送时间
func (s *DailyLogService) MarkCheckinSent(ctx context.Context, logID uint, at time.Time) error {
	return s.updateColumns(ctx, logID, "mark checkin sent", map[string]any{
		"checkin_sent_at": at.UTC(),
	})
}

// RecordReply 写入回复正文和时间，重复回复覆盖之前的内容
func (s *DailyLogService) RecordReply(ctx context.Context, logID uint, text string, at time.Time) error {
	return s.updateColumns(ctx, logID, "record reply", map[string]any{
		"user_response":     strings.TrimSpace(text),
		"user_responded_at": at.UTC(),
	})
}

// MarkSummarySent 记录总结邮件发送时间
func (s *DailyLogService) MarkSummarySent(ctx context.Context, logID uint, at time.Time) error {
	return s.updateColumns(ctx, logID, "mark summary sent", map[string]any{
		"summary_sent_at": at.UTC(),
	})
}

// RecordVerification 在一个事务里写入计数、明细、结果和完成时间，
// 读到的记录不会出现计数已更新而结果未更新的中间态。重复验证直接覆盖。
func (s *DailyLogService) RecordVerification(ctx context.Context, logID uint, snap activity.Snapshot, passed bool, at time.Time) (*db.DailyLog, error) {
	details, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode verification details: %w", err)
	}

	var record db.DailyLog
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&db.DailyLog{}).
			Where("id = ?", logID).
			Updates(map[string]any{
				"commits_count":             snap.CommitsCount,
				"prs_count":                 snap.PRsCount,
				"issues_count":              snap.IssuesCount,
				"verification_details":      datatypes.JSON(details),
				"verification_passed":       passed,
				"verification_completed_at": at.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDailyLogNotFound
		}
		return tx.First(&record, logID).Error
	})
	if err != nil {
		if errors.Is(err, ErrDailyLogNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("record verification: %w", err)
	}
	return &record, nil
}

// Details 解析验证明细，未验证时返回 nil
func (s *DailyLogService) Details(record db.DailyLog) (*activity.Snapshot, error) {
	if len(record.VerificationDetails) == 0 {
		return nil, nil
	}
	var snap activity.Snapshot
	if err := json.Unmarshal(record.VerificationDetails, &snap); err != nil {
		return nil, fmt.Errorf("decode verification details: %w", err)
	}
	return &snap, nil
}

func (s *DailyLogService) updateColumns(ctx context.Context, logID uint, action string, columns map[string]any) error {
	result := s.db.WithContext(ctx).Model(&db.DailyLog{}).Where("id = ?", logID).Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("%s: %w", action, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDailyLogNotFound
	}
	return nil
}

// isUniqueViolation 优先依赖 TranslateError，未开启时退回到驱动错误信息匹配。
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

package db

import (
	"time"

	"gorm.io/datatypes"
)

// 验证状态
const (
	StatusUnverified   = "unverified"
	StatusVerifiedPass = "verified-pass"
	StatusVerifiedFail = "verified-fail"
)

// DailyLog 是某用户某一天的记录。
// UserID + LogDate 采用唯一索引，这是并发写入下唯一的一致性保证；
// LogDate 存储为 UTC 零点的日期，各字段独立可空，由不同流程分别写入。
type DailyLog struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UserID  uint      `gorm:"not null;index;uniqueIndex:idx_daily_log_user_date,priority:1" json:"user_id"`
	User    User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	LogDate time.Time `gorm:"type:date;not null;index;uniqueIndex:idx_daily_log_user_date,priority:2" json:"log_date"`

	CheckinSentAt *time.Time `json:"checkin_sent_at"`

	UserResponse    *string    `gorm:"type:text" json:"user_response"`
	UserRespondedAt *time.Time `json:"user_responded_at"`

	VerificationCompletedAt *time.Time     `json:"verification_completed_at"`
	CommitsCount            int            `gorm:"not null;default:0" json:"commits_count"`
	PRsCount                int            `gorm:"column:prs_count;not null;default:0" json:"prs_count"`
	IssuesCount             int            `gorm:"not null;default:0" json:"issues_count"`
	VerificationPassed      *bool          `json:"verification_passed"`
	VerificationDetails     datatypes.JSON `json:"verification_details"`

	SummarySentAt *time.Time `json:"summary_sent_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 重写确保唯一索引作用到 user_id + log_date
func (DailyLog) TableName() string {
	return "daily_logs"
}

// Status 未跑过验证时为 unverified。
func (l DailyLog) Status() string {
	switch {
	case l.VerificationPassed == nil:
		return StatusUnverified
	case *l.VerificationPassed:
		return StatusVerifiedPass
	default:
		return StatusVerifiedFail
	}
}

// TotalActivity 提交、PR、issue 数量之和
func (l DailyLog) TotalActivity() int {
	return l.CommitsCount + l.PRsCount + l.IssuesCount
}

// Response 返回回复正文，未回复时为空串。
func (l DailyLog) Response() string {
	if l.UserResponse == nil {
		return ""
	}
	return *l.UserResponse
}

package service

import (
	"context"
	"time"
)

// Notifier 负责对外发信。发送失败必须返回错误，调用方据此决定是否落库发送时间。
type Notifier interface {
	SendCheckin(ctx context.Context, msg CheckinMessage) error
	SendSummary(ctx context.Context, msg SummaryMessage) error
}

// CheckinMessage 是每日提醒邮件的内容
type CheckinMessage struct {
	To   string
	Date time.Time
}

// SummaryMessage 是验证结束后的总结邮件内容
type SummaryMessage struct {
	To     string
	Date   time.Time
	Result VerificationResult
}

package db

import "time"

// User 是接受每日检查的账号。应用不做物理删除，停用只翻转 IsActive。
// GitHubToken 在配置了加密密钥时以密文存储，读取请走 UserService.Credential。
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	GitHubUsername string    `gorm:"column:github_username;size:255;uniqueIndex;not null" json:"github_username"`
	GitHubToken    string    `gorm:"column:github_token;type:text;not null" json:"-"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	TimeZone       string    `gorm:"column:time_zone;size:64;not null" json:"time_zone"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 固定表名
func (User) TableName() string {
	return "users"
}

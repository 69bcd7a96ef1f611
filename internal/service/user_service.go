package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/db"
	"github.com/commitlog/dailyagent/internal/secret"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 在邮箱找不到活跃用户时返回
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidEmail 邮箱格式非法
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidGitHubUsername GitHub 用户名格式非法
	ErrInvalidGitHubUsername = errors.New("invalid github username")
	// ErrMissingGitHubToken 未提供访问令牌
	ErrMissingGitHubToken = errors.New("github token is required")
	// ErrInvalidTimezone 时区无法识别
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrGitHubUsernameTaken 用户名已被其他邮箱占用
	ErrGitHubUsernameTaken = errors.New("github username already belongs to another user")
)

var githubUsernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9]|-[A-Za-z0-9]){0,38}$`)

// UserService 管理被督促的用户
type UserService struct {
	db          *gorm.DB
	box         *secret.Box
	defaultZone string
}

// ProvisionInput 定义创建/更新用户时的字段
type ProvisionInput struct {
	Email          string
	GitHubUsername string
	GitHubToken    string
	TimeZone       string
}

// NewUserService 构造 UserService，box 为 nil 时令牌明文存储
func NewUserService(gdb *gorm.DB, box *secret.Box, defaultZone string) *UserService {
	if box == nil {
		box = &secret.Box{}
	}
	return &UserService{db: gdb, box: box, defaultZone: strings.TrimSpace(defaultZone)}
}

// Provision 按邮箱 upsert：已存在则更新用户名、令牌、时区并重新激活
func (s *UserService) Provision(ctx context.Context, input ProvisionInput) (*db.User, bool, error) {
	email, err := NormalizeEmail(input.Email)
	if err != nil {
		return nil, false, err
	}

	username := strings.TrimSpace(input.GitHubUsername)
	if !githubUsernamePattern.MatchString(username) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidGitHubUsername, input.GitHubUsername)
	}

	token := strings.TrimSpace(input.GitHubToken)
	if token == "" {
		return nil, false, ErrMissingGitHubToken
	}

	zone := strings.TrimSpace(input.TimeZone)
	if zone == "" {
		zone = s.defaultZone
	}
	if err := calendar.ValidateZone(zone); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidTimezone, err)
	}

	sealed, err := s.box.Seal(token)
	if err != nil {
		return nil, false, fmt.Errorf("seal github token: %w", err)
	}

	var user db.User
	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			user = db.User{
				Email:          email,
				GitHubUsername: username,
				GitHubToken:    sealed,
				IsActive:       true,
				TimeZone:       zone,
			}
			created = true
			return tx.Create(&user).Error
		case findErr != nil:
			return findErr
		}

		user.GitHubUsername = username
		user.GitHubToken = sealed
		user.TimeZone = zone
		user.IsActive = true
		return tx.Save(&user).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, false, ErrGitHubUsernameTaken
		}
		return nil, false, fmt.Errorf("provision user: %w", err)
	}
	return &user, created, nil
}

// GetActiveByEmail 大小写不敏感地查找活跃用户
func (s *UserService) GetActiveByEmail(ctx context.Context, email string) (*db.User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	var user db.User
	if err := s.db.WithContext(ctx).
		Where("LOWER(email) = ? AND is_active = ?", normalized, true).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ListActive 返回所有活跃用户，按 ID 排序
func (s *UserService) ListActive(ctx context.Context) ([]db.User, error) {
	var users []db.User
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return users, nil
}

// Deactivate 停用用户，记录保留
func (s *UserService) Deactivate(ctx context.Context, email string) error {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&db.User{}).
		Where("LOWER(email) = ?", normalized).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivate user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Credential 解密并返回用户的 GitHub 令牌
func (s *UserService) Credential(user db.User) (string, error) {
	token, err := s.box.Open(user.GitHubToken)
	if err != nil {
		return "", fmt.Errorf("open github token for %s: %w", user.Email, err)
	}
	return token, nil
}

// NormalizeEmail 接受 "Name <addr>" 或裸地址，返回小写地址
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return strings.ToLower(addr.Address), nil
}

// Package cache keeps GitHub repository listings in Redis between runs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/commitlog/dailyagent/internal/activity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions 连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient 创建客户端并做一次 Ping，连不上时返回错误由调用方决定是否降级。
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RepoCache 实现 github.RepoCache。任何 Redis 错误都按未命中处理，只记日志。
type RepoCache struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewRepoCache 包装一个 Redis 客户端
func NewRepoCache(client redis.Cmdable, logger *zap.Logger) *RepoCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepoCache{client: client, logger: logger}
}

// GetRepositories 读取缓存
func (c *RepoCache) GetRepositories(ctx context.Context, key string) ([]activity.Repository, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("repository cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var repos []activity.Repository
	if err := json.Unmarshal(data, &repos); err != nil {
		c.logger.Warn("repository cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return repos, true
}

// SetRepositories 写入缓存，ttl<=0 时不写
func (c *RepoCache) SetRepositories(ctx context.Context, key string, repos []activity.Repository, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(repos)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("repository cache write failed", zap.String("key", key), zap.Error(err))
	}
}

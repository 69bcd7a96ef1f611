package cache

import (
	"context"
	"testing"
	"time"

	"github.com/commitlog/dailyagent/internal/activity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRepoCacheDegradesToMiss(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	cache := NewRepoCache(client, zap.NewNop())
	ctx := context.Background()

	cache.SetRepositories(ctx, "github:repos:octo", []activity.Repository{{FullName: "octo/app"}}, time.Minute)
	if repos, ok := cache.GetRepositories(ctx, "github:repos:octo"); ok || repos != nil {
		t.Fatalf("expected miss when redis is unreachable, got %v", repos)
	}
}

func TestNewRedisClientReportsUnreachableServer(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), RedisOptions{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected ping error")
	}
}

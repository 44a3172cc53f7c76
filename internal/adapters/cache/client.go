package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

// NewClient は設定から Redis クライアントを生成し、疎通を確認します。
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

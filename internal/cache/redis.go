package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const redisKeyPrefix = "govnews:content:"

// Redis 基于 Redis 的正文缓存，多实例部署时共享。
// 写入使用 SETNX，跨进程同一个 key 以先写入者为准
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) TryGet(ctx context.Context, key string, compute func(context.Context) (string, error)) (string, error) {
	k := redisKeyPrefix + key
	v, err := r.client.Get(ctx, k).Result()
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, redis.Nil) {
		// Redis 不可用时退化为直接计算，不影响抽取
		log.Printf("[WARN] cache get %s: %v", key, err)
	}

	ch := r.group.DoChan(k, func() (any, error) {
		cctx := context.WithoutCancel(ctx)
		v, err := compute(cctx)
		if err != nil {
			return "", err
		}
		stored, err := r.client.SetNX(cctx, k, v, r.ttl).Result()
		if err != nil {
			log.Printf("[WARN] cache set %s: %v", key, err)
			return v, nil
		}
		if !stored {
			if existing, err := r.client.Get(cctx, k).Result(); err == nil {
				return existing, nil
			}
		}
		return v, nil
	})
	return wait(ctx, ch)
}

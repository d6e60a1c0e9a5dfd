// cache — Redis-кэш ссылок, уже известных хранилищу.
// Кэш только положительный: промах ничего не утверждает и
// всегда ведёт к проверке в БД.
package cache

//go:generate mockgen -source=cache.go -destination=../../mocks/cache.go -package=mocks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenCache — минимальный контракт кэша виденных ссылок.
type SeenCache interface {
	// Seen сообщает, помечена ли ссылка как уже сохранённая.
	Seen(ctx context.Context, link string) (bool, error)
	// Remember помечает ссылку как сохранённую на ttl.
	Remember(ctx context.Context, link string) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "ingest:seen:"; ttl <= 0 — 30 дней.
func NewRedisCache(redisURL, prefix string, ttl time.Duration) (SeenCache, error) {
	if prefix == "" {
		prefix = "ingest:seen:"
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (c *redisCache) key(link string) string { return c.prefix + link }

func (c *redisCache) Seen(ctx context.Context, link string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(link)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (c *redisCache) Remember(ctx context.Context, link string) error {
	return c.rdb.Set(ctx, c.key(link), "1", c.ttl).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }

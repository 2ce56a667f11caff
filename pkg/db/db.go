// pkg/db/db.go
package db

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"apgate/pkg/config"
)

// MustRedis connects to Redis when REDIS_URL is configured. A nil return
// means callers should fall back to in-process alternatives.
func MustRedis(cfg config.Config, log *zap.SugaredLogger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalw("redis parse", "err", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(context.Background()).Err(); err != nil {
		log.Fatalw("redis ping", "err", err)
	}
	log.Infow("redis ready", "addr", opts.Addr)
	return cli
}

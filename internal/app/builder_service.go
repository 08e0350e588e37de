package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"daybot/internal/config"
	"daybot/internal/executor/paper"
	"daybot/internal/logger"
	livehttp "daybot/internal/transport/http/live"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

// buildDedup picks the duplicate-order cache. The returned closer is nil for
// the in-process cache.
func buildDedup(ctx context.Context, cfg config.PaperConfig) (paper.Dedup, func() error, error) {
	if cfg.DedupBackend != "redis" {
		return paper.NewMemoryDedup(cfg.DedupWindow(), cfg.DedupRetention()), nil, nil
	}
	opt, err := redisOptions(cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis dedup unreachable at %s: %w", opt.Addr, err)
	}
	logger.Infof("order dedup backed by redis at %s", opt.Addr)
	return paper.NewRedisDedup(rdb, cfg.DedupWindow()), rdb.Close, nil
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid paper.redis_addr: %w", err)
		}
		return opt, nil
	}
	return &redis.Options{Addr: addr}, nil
}

func buildLiveHTTPServer(cfg config.AppConfig, ctrl livehttp.Controls) (*livehttp.Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "-" {
		logger.Infof("live http disabled")
		return nil, nil
	}
	server, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:     cfg.HTTPAddr,
		Controls: ctrl,
	})
	if err != nil {
		return nil, fmt.Errorf("init live http: %w", err)
	}
	return server, nil
}

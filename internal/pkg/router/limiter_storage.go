package router

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"
)

// NewLimiterStorage returns a redis backed limiter store on database 1 of the
// cache server (the cache itself uses DB 0). It returns nil, which makes the
// limiter fall back to in-memory counters, when the cache is unreachable.
func NewLimiterStorage(cacheClient *goredis.Client) fiber.Storage {
	if cacheClient == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cacheClient.Ping(ctx).Err(); err != nil {
		fiberlog.Warnf("[Router] Cache unavailable, limiter uses memory storage: %v", err)
		return nil
	}

	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(cacheClient.Options().Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: cacheClient.Options().Password,
		Database: 1,
		Reset:    false,
	})
}

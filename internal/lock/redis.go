package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
// KEYS[1] = lock key
// ARGV[1] = token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINVALID, "lock.redis", "invalid Redis URL")
	}
	return redis.NewClient(opts), nil
}

// RedisLocker implements domain.OrderLocker with SET NX PX and a random token.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	opts   Options
	logger *slog.Logger
}

func NewRedisLocker(client redis.UniversalClient, prefix string, opts Options, logger *slog.Logger) *RedisLocker {
	if prefix == "" {
		prefix = "verdandi:lock"
	}
	return &RedisLocker{client: client, prefix: prefix, opts: opts.withDefaults(), logger: logger}
}

var _ domain.OrderLocker = (*RedisLocker)(nil)

// Key returns the Redis key guarding name.
func (l *RedisLocker) Key(name string) string {
	return l.prefix + ":" + name
}

func (l *RedisLocker) Lock(ctx context.Context, name string) (func(), error) {
	key := l.Key(name)
	token := uuid.NewString()

	err := retry(ctx, l.opts, func() (bool, error) {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return false, domain.WrapError(err, domain.EINTERNAL, "lock.acquire", "failed to acquire lock")
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	return func() {
		// Release even when the request context is already cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		n, err := releaseScript.Run(rctx, l.client, []string{key}, token).Int()
		if err != nil {
			l.logger.Error("failed to release lock", "key", key, "error", err)
			return
		}
		if n == 0 {
			l.logger.Warn("lock expired before release", "key", key, "ttl", l.opts.TTL)
		}
	}, nil
}

// Ping checks the Redis connection for health endpoints.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"skillsphere/course-studio/internal/config"
	"skillsphere/course-studio/internal/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "course-studio:deploy:"
	defaultLockTTL = time.Minute
)

// Deletes the key only if it still carries our token, so an expired holder
// cannot release a lock someone else took over.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Extends the key only while it still carries our token.
var refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// redisClient is the subset of the go-redis client the locker uses.
type redisClient interface {
	goredis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
}

type redisLocker struct {
	rdb redisClient
	ttl time.Duration
	log *logger.Logger
}

// NewRedisLocker connects to Redis and verifies it with a ping. A held token is
// refreshed every third of its TTL until released, so a deploy of any length
// keeps it, while a crashed holder blocks the draft for at most one TTL.
func NewRedisLocker(cfg config.RedisConfig, log *logger.Logger) (Locker, func() error, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisLocker(rdb, cfg.LockTTL, log), rdb.Close, nil
}

func newRedisLocker(rdb redisClient, ttl time.Duration, log *logger.Logger) *redisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &redisLocker{rdb: rdb, ttl: ttl, log: log.With("component", "RedisLocker")}
}

// refreshInterval is how often a held token is extended.
func (l *redisLocker) refreshInterval() time.Duration {
	return l.ttl / 3
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := keyPrefix + key
	ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire deploy lock: %w", err)
	}
	if !ok {
		return nil, ErrSubmissionInFlight
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Release must run even when the request context is already cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
				l.log.Warn("failed to release deploy lock", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *redisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.refreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.refreshInterval())
			n, err := refreshScript.Run(ctx, l.rdb, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				// Transient; the next tick retries while the TTL still covers us
				l.log.Warn("failed to refresh deploy lock", "key", redisKey, "error", err)
				continue
			}
			if n == 0 {
				l.log.Error("deploy lock lost while held", "key", redisKey)
				return
			}
		}
	}
}

func (l *redisLocker) Held(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check deploy lock: %w", err)
	}
	return n > 0, nil
}

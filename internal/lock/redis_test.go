package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"skillsphere/course-studio/internal/logger"

	goredis "github.com/redis/go-redis/v9"
)

// fakeRedis keeps string keys with expiry and understands the locker's scripts.
type fakeRedis struct {
	goredis.Scripter

	mu        sync.Mutex
	values    map[string]string
	expires   map[string]time.Time
	refreshes int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string), expires: make(map[string]time.Time)}
}

// live drops key if it has expired. Caller holds mu.
func (f *fakeRedis) live(key string) (string, bool) {
	if exp, ok := f.expires[key]; ok && time.Now().After(exp) {
		delete(f.values, key)
		delete(f.expires, key)
	}
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live(key); ok {
		return goredis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.expires[key] = time.Now().Add(expiration)
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.live(k); ok {
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, sha string, keys []string, args ...interface{}) *goredis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := keys[0], args[0].(string)
	if v, ok := f.live(key); !ok || v != token {
		return goredis.NewCmdResult(int64(0), nil)
	}
	switch sha {
	case releaseScript.Hash():
		delete(f.values, key)
		delete(f.expires, key)
	case refreshScript.Hash():
		f.expires[key] = time.Now().Add(time.Duration(args[1].(int64)) * time.Millisecond)
		f.refreshes++
	default:
		return goredis.NewCmdResult(nil, errors.New("NOSCRIPT unknown script"))
	}
	return goredis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func TestRedisLockerRefreshInterval(t *testing.T) {
	l := newRedisLocker(newFakeRedis(), 0, logger.Nop())
	if l.ttl != defaultLockTTL {
		t.Fatalf("default ttl = %v", l.ttl)
	}
	if iv := l.refreshInterval(); iv <= 0 || iv*2 >= l.ttl {
		t.Fatalf("refresh interval %v leaves no margin inside ttl %v", iv, l.ttl)
	}
}

func TestRedisLockerOutlivesTTLWhileHeld(t *testing.T) {
	rdb := newFakeRedis()
	ttl := 150 * time.Millisecond
	l := newRedisLocker(rdb, ttl, logger.Nop())
	ctx := context.Background()

	release, err := l.Acquire(ctx, "draft-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// A deploy much longer than the TTL keeps its token
	time.Sleep(4 * ttl)
	if held, err := l.Held(ctx, "draft-1"); err != nil || !held {
		t.Fatalf("held = %v, %v after %v", held, err, 4*ttl)
	}
	if _, err := l.Acquire(ctx, "draft-1"); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("second acquire: got %v, want ErrSubmissionInFlight", err)
	}
	if rdb.refreshCount() == 0 {
		t.Fatal("token was never refreshed")
	}

	release()
	release()
	if held, _ := l.Held(ctx, "draft-1"); held {
		t.Fatal("still held after release")
	}
	again, err := l.Acquire(ctx, "draft-1")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestRedisLockerExpiresWithoutHolder(t *testing.T) {
	rdb := newFakeRedis()
	ttl := 50 * time.Millisecond
	l := newRedisLocker(rdb, ttl, logger.Nop())
	ctx := context.Background()

	// A token set by a crashed process: nobody refreshes it
	rdb.SetNX(ctx, keyPrefix+"draft-1", "other-process", ttl)
	if _, err := l.Acquire(ctx, "draft-1"); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("acquire over live token: %v", err)
	}
	time.Sleep(2 * ttl)
	release, err := l.Acquire(ctx, "draft-1")
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	release()
}

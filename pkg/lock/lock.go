// Package lock 提供后台任务的单实例互斥锁。
//
// 分发循环、对账与缓存组装都假设同一时刻最多只有一个写入方；
// 这里的锁让多个进程实例可以安全地被同时调度。
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotAcquired 表示锁已被其他持有者占用。
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker 获取一个带过期时间的命名锁，返回释放函数。
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

// releaseScript 只删除自己持有的锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 基于 SET NX PX 的分布式锁。
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLocker 创建 RedisLocker，key 形如 "coldvault:lock:{name}"。
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: "coldvault:lock:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
	}, nil
}

// LocalLocker 是进程内实现，用于未配置 Redis 的单实例部署。
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocalLocker 创建进程内锁。
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, name string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, ok := l.held[name]; ok && now.Before(exp) {
		return nil, ErrNotAcquired
	}
	exp := now.Add(ttl)
	l.held[name] = exp
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[name].Equal(exp) {
			delete(l.held, name)
		}
	}, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-bridge-go/pkg/log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockNotAcquired 在 ctx 结束前仍未拿到会话锁时返回。
var ErrLockNotAcquired = errors.New("conversation lock not acquired")

// ConversationLocker 对同一会话的 group_id 分配和消息写入做串行化。
// Lock 返回的 unlock 函数必须调用，且只调用一次。
type ConversationLocker interface {
	Lock(ctx context.Context, conversationID string) (unlock func(), err error)
}

// unlockScript 只删除自己持有的锁，避免锁过期后误删别人的锁。
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript 只为自己持有的锁续期。
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisConversationLocker struct {
	redisClient *redis.Client
	ttl         time.Duration
	retryDelay  time.Duration
}

// NewRedisConversationLocker 创建基于 Redis SET NX 的会话锁，多个实例之间共享。
// 持有期间每隔 ttl/3 续期一次，处理时间超过 ttl 也不会丢锁。
func NewRedisConversationLocker(redisClient *redis.Client, ttl time.Duration) ConversationLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisConversationLocker{redisClient: redisClient, ttl: ttl, retryDelay: 20 * time.Millisecond}
}

func (l *redisConversationLocker) lockKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:lock", conversationID)
}

func (l *redisConversationLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	key := l.lockKey(conversationID)
	token := uuid.NewString()
	delay := l.retryDelay
	for {
		ok, err := l.redisClient.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire conversation lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
		case <-time.After(delay):
		}
		if delay < 500*time.Millisecond {
			delay *= 2
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// 使用独立上下文，请求取消后仍要释放锁
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = unlockScript.Run(releaseCtx, l.redisClient, []string{key}, token).Err()
		})
	}, nil
}

// keepAlive 定期延长锁的过期时间，直到 stop 关闭或锁已不属于自己。
func (l *redisConversationLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			renewed, err := renewScript.Run(ctx, l.redisClient, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				log.Warnw("会话锁续期失败", "key", key, "error", err)
				continue
			}
			if renewed == 0 {
				log.Errorw("会话锁已丢失，停止续期", "key", key)
				return
			}
		}
	}
}

type localConversationLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch      chan struct{}
	waiters int
}

// NewLocalConversationLocker 创建进程内的会话锁，仅适用于单实例部署。
func NewLocalConversationLocker() ConversationLocker {
	return &localConversationLocker{locks: make(map[string]*localLock)}
}

func (l *localConversationLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[conversationID]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[conversationID] = lk
	}
	lk.waiters++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(conversationID, lk, false)
		return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(conversationID, lk, true) })
	}, nil
}

func (l *localConversationLocker) release(conversationID string, lk *localLock, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held {
		<-lk.ch
	}
	lk.waiters--
	if lk.waiters == 0 {
		delete(l.locks, conversationID)
	}
}

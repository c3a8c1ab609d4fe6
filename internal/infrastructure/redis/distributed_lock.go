package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// RetryPolicy はロック取得のリトライ方針
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DistributedLock は Redis を使用した分散ロック
// TTLが安全網なので、Releaseの失敗は正しさに影響しない（遅延にのみ影響する）
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	ttl        time.Duration
	acquiredAt time.Time
}

// Resource はロック対象のリソース名を返す
func (l *DistributedLock) Resource() string {
	return l.key
}

// ExpiresAt はロックのTTL満了時刻を返す
func (l *DistributedLock) ExpiresAt() time.Time {
	return l.acquiredAt.Add(l.ttl)
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := fmt.Sprintf("lock:%s", resource)
	lockValue := uuid.New().String()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &DistributedLock{
		client:     m.client,
		key:        lockKey,
		value:      lockValue,
		ttl:        ttl,
		acquiredAt: time.Now(),
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
// リトライ回数を使い切った場合は ErrLockNotAcquired を返す
// （呼び出し側はリトライ可能な競合として扱う）
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, resource string, ttl time.Duration, policy RetryPolicy) (*DistributedLock, error) {
	var lastErr error
	for i := 0; i < policy.MaxAttempts; i++ {
		lock, err := m.AcquireLock(ctx, resource, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.Delay):
		}
	}
	return nil, lastErr
}

// RunExclusive はロック取得、fn実行、解放をスコープ付きで行う
// fnがパニックしてもロックは解放される
func (m *LockManager) RunExclusive(ctx context.Context, resource string, ttl time.Duration, policy RetryPolicy, fn func(ctx context.Context) error) error {
	lock, err := m.AcquireLockWithRetry(ctx, resource, ttl, policy)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)
	return fn(ctx)
}

// IsLocked はリソースが現在ロックされているかを返す
// 本質的にレースするため診断用途のみ。正しさの判断には使わないこと
func (m *LockManager) IsLocked(ctx context.Context, resource string) (bool, error) {
	lockKey := fmt.Sprintf("lock:%s", resource)
	n, err := m.client.Exists(ctx, lockKey).Result()
	if err != nil {
		return false, fmt.Errorf("ロック状態確認に失敗: %w", err)
	}
	return n > 0, nil
}

// Release はロックを解放する（Lua スクリプトで安全に解放）
func (l *DistributedLock) Release(ctx context.Context) error {
	// Lua スクリプトで所有者確認と削除をアトミックに実行
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	l.acquiredAt = time.Now()
	return nil
}

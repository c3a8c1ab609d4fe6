package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/config"
)

func newTestClient(t *testing.T) *LockManager {
	t.Helper()
	client := NewClient(&config.RedisConfig{Host: "localhost", Port: "6379"})
	if err := Ping(context.Background(), client); err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { client.Close() })
	return NewLockManager(client)
}

func TestLockManager_AcquireLock(t *testing.T) {
	manager := newTestClient(t)
	ctx := context.Background()

	t.Run("ロックを取得できる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-key-1", 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, lock)
		defer lock.Release(ctx)
	})

	t.Run("同じリソースのロックは取得できない", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-key-2", 5*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		lock2, err := manager.AcquireLock(ctx, "test-key-2", 5*time.Second)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, lock2)
	})

	t.Run("解放後は再取得できる", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-key-3", 5*time.Second)
		require.NoError(t, err)

		require.NoError(t, lock1.Release(ctx))

		lock2, err := manager.AcquireLock(ctx, "test-key-3", 5*time.Second)
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})

	t.Run("リトライで取得できる", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-key-4", 500*time.Millisecond)
		require.NoError(t, err)

		go func() {
			time.Sleep(300 * time.Millisecond)
			lock1.Release(ctx)
		}()

		lock2, err := manager.AcquireLockWithRetry(ctx, "test-key-4", 5*time.Second,
			RetryPolicy{MaxAttempts: 5, Delay: 100 * time.Millisecond})
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})

	t.Run("競合が続くとリトライ回数を使い切って失敗する", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-key-contended", 30*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		start := time.Now()
		_, err = manager.AcquireLockWithRetry(ctx, "test-key-contended", 5*time.Second,
			RetryPolicy{MaxAttempts: 3, Delay: 50 * time.Millisecond})

		// ハングせず、有限回のリトライ後に ErrLockNotAcquired が返る
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestLockManager_RunExclusive(t *testing.T) {
	manager := newTestClient(t)
	ctx := context.Background()
	policy := RetryPolicy{MaxAttempts: 3, Delay: 50 * time.Millisecond}

	t.Run("fnの結果が返りロックは解放される", func(t *testing.T) {
		wantErr := errors.New("fn error")
		err := manager.RunExclusive(ctx, "test-exclusive-1", 5*time.Second, policy, func(ctx context.Context) error {
			locked, err := manager.IsLocked(ctx, "test-exclusive-1")
			require.NoError(t, err)
			assert.True(t, locked)
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)

		locked, err := manager.IsLocked(ctx, "test-exclusive-1")
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("同時実行は直列化される", func(t *testing.T) {
		var mu sync.Mutex
		var inside, maxInside int

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = manager.RunExclusive(ctx, "test-exclusive-2", 5*time.Second,
					RetryPolicy{MaxAttempts: 50, Delay: 20 * time.Millisecond},
					func(ctx context.Context) error {
						mu.Lock()
						inside++
						if inside > maxInside {
							maxInside = inside
						}
						mu.Unlock()

						time.Sleep(10 * time.Millisecond)

						mu.Lock()
						inside--
						mu.Unlock()
						return nil
					})
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, maxInside, "クリティカルセクション内は常に1ゴルーチンのみ")
	})
}

func TestDistributedLock_Extend(t *testing.T) {
	manager := newTestClient(t)
	ctx := context.Background()

	t.Run("ロックを延長できる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-key-extend", 1*time.Second)
		require.NoError(t, err)
		defer lock.Release(ctx)

		require.NoError(t, lock.Extend(ctx, 5*time.Second))

		// まだロックを持っていることを確認
		lock2, err := manager.AcquireLock(ctx, "test-key-extend", 1*time.Second)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, lock2)
	})

	t.Run("解放後は延長できない", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-key-extend-after-release", 1*time.Second)
		require.NoError(t, err)

		require.NoError(t, lock.Release(ctx))

		err = lock.Extend(ctx, 5*time.Second)
		assert.ErrorIs(t, err, ErrLockNotOwned)
	})
}

func TestDistributedLock_TTLExpiry(t *testing.T) {
	manager := newTestClient(t)
	ctx := context.Background()

	// TTL満了後は解放しなくても再取得できる（TTLが安全網）
	lock1, err := manager.AcquireLock(ctx, "test-key-ttl", 200*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)

	lock2, err := manager.AcquireLock(ctx, "test-key-ttl", 5*time.Second)
	require.NoError(t, err)
	defer lock2.Release(ctx)

	// 失効したロックの解放は所有者エラーになる
	assert.ErrorIs(t, lock1.Release(ctx), ErrLockNotOwned)
}

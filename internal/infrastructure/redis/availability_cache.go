package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// AvailabilityCache はフライトの運賃クラス別空席数のキャッシュを管理する
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// Get はフライトの運賃クラス別空席数をキャッシュから取得する
func (c *AvailabilityCache) Get(ctx context.Context, flightID string) (map[string]int, error) {
	key := c.availabilityKey(flightID)
	values, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrCacheMiss
	}
	counts := make(map[string]int, len(values))
	for fareClassID, v := range values {
		count, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("キャッシュ値の解析に失敗: %w", err)
		}
		counts[fareClassID] = count
	}
	return counts, nil
}

// Set はフライトの運賃クラス別空席数をキャッシュに保存する
func (c *AvailabilityCache) Set(ctx context.Context, flightID string, counts map[string]int, ttl time.Duration) error {
	if len(counts) == 0 {
		return nil
	}
	key := c.availabilityKey(flightID)
	fields := make(map[string]interface{}, len(counts))
	for fareClassID, count := range counts {
		fields[fareClassID] = count
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はフライトのキャッシュを無効化する
// 座席ステータスが変わるたびに呼ばれる
func (c *AvailabilityCache) Invalidate(ctx context.Context, flightID string) error {
	key := c.availabilityKey(flightID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) availabilityKey(flightID string) string {
	return fmt.Sprintf("availability:%s", flightID)
}

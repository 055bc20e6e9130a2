package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// CalendarCacheInterface は空き状況カレンダーのキャッシュ
//
// キーは商品ごとの世代番号を含む。定員や予約済み数を変更したら
// コミット後に Invalidate で世代を進め、古い世代のエントリは TTL で消える。
type CalendarCacheInterface interface {
	Version(ctx context.Context, productID string) (int64, error)
	Get(ctx context.Context, productID string, version int64, start, end time.Time) ([]slot.CalendarEntry, error)
	Set(ctx context.Context, productID string, version int64, start, end time.Time, entries []slot.CalendarEntry) error
	Invalidate(ctx context.Context, productID string) error
}

// CalendarCache は Redis によるカレンダーキャッシュ
type CalendarCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCalendarCache は新しいCalendarCacheを作成する
func NewCalendarCache(client *redis.Client, ttl time.Duration) *CalendarCache {
	return &CalendarCache{client: client, ttl: ttl}
}

// Version は商品の現在の世代番号を返す（未設定なら0）
func (c *CalendarCache) Version(ctx context.Context, productID string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(productID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("キャッシュ世代取得に失敗: %w", err)
	}
	return v, nil
}

// Get は指定世代のカレンダーを取得する
func (c *CalendarCache) Get(ctx context.Context, productID string, version int64, start, end time.Time) ([]slot.CalendarEntry, error) {
	raw, err := c.client.Get(ctx, c.calendarKey(productID, version, start, end)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	var entries []slot.CalendarEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	return entries, nil
}

// Set は指定世代のカレンダーを保存する
func (c *CalendarCache) Set(ctx context.Context, productID string, version int64, start, end time.Time, entries []slot.CalendarEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("キャッシュの変換に失敗: %w", err)
	}
	if err := c.client.Set(ctx, c.calendarKey(productID, version, start, end), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は商品の世代を進め、以前の世代のキャッシュを読まれなくする
func (c *CalendarCache) Invalidate(ctx context.Context, productID string) error {
	if err := c.client.Incr(ctx, c.versionKey(productID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *CalendarCache) versionKey(productID string) string {
	return fmt.Sprintf("calendar:ver:%s", productID)
}

func (c *CalendarCache) calendarKey(productID string, version int64, start, end time.Time) string {
	return fmt.Sprintf("calendar:%s:%d:%s:%s", productID, version, slot.FormatDate(start), slot.FormatDate(end))
}

var _ CalendarCacheInterface = (*CalendarCache)(nil)

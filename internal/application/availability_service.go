package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
	redisinfra "github.com/sanosuguru/go-tour-slot-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/logger"
)

const defaultMaxCalendarDays = 366

// AvailabilityService は空き状況カレンダーと集計を提供する読み取り専用サービス
//
// キャッシュは商品ごとの世代番号付きキーで保持する。世代はDBを読む前に取得するので、
// 読み取り中に枠が更新されても古い結果が新しい世代として保存されることはない。
// キャッシュが使えない場合はDBから直接読む。
type AvailabilityService struct {
	productRepo product.Repository
	slotRepo    slot.Repository
	cache       redisinfra.CalendarCacheInterface
	maxDays     int
}

func NewAvailabilityService(pr product.Repository, sr slot.Repository, cache redisinfra.CalendarCacheInterface, maxDays int) *AvailabilityService {
	if maxDays <= 0 {
		maxDays = defaultMaxCalendarDays
	}
	return &AvailabilityService{productRepo: pr, slotRepo: sr, cache: cache, maxDays: maxDays}
}

// GetCalendar は start〜end（両端含む）の各日の空き状況を日付順に返す
func (s *AvailabilityService) GetCalendar(ctx context.Context, productID string, start, end time.Time) ([]slot.CalendarEntry, error) {
	start, end = slot.NormalizeDate(start), slot.NormalizeDate(end)
	if err := s.validateRange(start, end); err != nil {
		return nil, err
	}
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	version, useCache := s.cacheVersion(ctx, p.ID)
	if useCache {
		entries, err := s.cache.Get(ctx, p.ID, version, start, end)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("カレンダーキャッシュの取得に失敗", logger.ProductID(p.ID), zap.Error(err))
		}
	}

	slots, err := s.slotRepo.ListRange(ctx, p.ID, start, end)
	if err != nil {
		return nil, err
	}
	entries := slot.BuildCalendar(start, end, slots, p.DefaultCapacity)

	if useCache {
		if err := s.cache.Set(ctx, p.ID, version, start, end, entries); err != nil {
			logger.Warn("カレンダーキャッシュの保存に失敗", logger.ProductID(p.ID), zap.Error(err))
		}
	}
	return entries, nil
}

// GetStats は範囲内の予約状況を集計する
func (s *AvailabilityService) GetStats(ctx context.Context, productID string, start, end time.Time) (*slot.Stats, error) {
	entries, err := s.GetCalendar(ctx, productID, start, end)
	if err != nil {
		return nil, err
	}
	stats := slot.Summarize(entries)
	return &stats, nil
}

// InvalidateAvailability は商品のキャッシュ世代を進める
// 失敗してもキャッシュはTTLで失効するため、ログに残して処理を続ける
func (s *AvailabilityService) InvalidateAvailability(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		logger.Warn("カレンダーキャッシュの無効化に失敗", logger.ProductID(productID), zap.Error(err))
	}
}

func (s *AvailabilityService) validateRange(start, end time.Time) error {
	if end.Before(start) {
		return slot.ErrInvalidDateRange
	}
	if slot.Days(start, end) > s.maxDays {
		return slot.ErrInvalidDateRange
	}
	return nil
}

func (s *AvailabilityService) cacheVersion(ctx context.Context, productID string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	v, err := s.cache.Version(ctx, productID)
	if err != nil {
		logger.Warn("カレンダーキャッシュの世代取得に失敗", logger.ProductID(productID), zap.Error(err))
		return 0, false
	}
	return v, true
}

var _ AvailabilityInvalidator = (*AvailabilityService)(nil)

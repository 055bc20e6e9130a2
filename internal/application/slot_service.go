package application

import (
	"context"
	"time"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

// AvailabilityInvalidator は枠の変更をカレンダーキャッシュへ伝える
// コミット後に呼び出すこと
type AvailabilityInvalidator interface {
	InvalidateAvailability(ctx context.Context, productID string)
}

// SlotService は (商品, 日付) ごとの定員レコードを扱う
type SlotService struct {
	productRepo product.Repository
	slotRepo    slot.Repository
	invalidator AvailabilityInvalidator
}

func NewSlotService(pr product.Repository, sr slot.Repository, inv AvailabilityInvalidator) *SlotService {
	return &SlotService{productRepo: pr, slotRepo: sr, invalidator: inv}
}

// GetSlot は枠を返す。まだ存在しない日は商品の既定定員で作成する
func (s *SlotService) GetSlot(ctx context.Context, productID string, date time.Time) (*slot.Slot, error) {
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.slotRepo.GetOrCreate(ctx, p.ID, slot.NormalizeDate(date), p.DefaultCapacity)
}

// SetCapacity は枠の定員を変更する
// 予約済み数を下回る値は ErrInvalidCapacity
func (s *SlotService) SetCapacity(ctx context.Context, productID string, date time.Time, capacity int) (*slot.Slot, error) {
	if capacity < 0 {
		return nil, slot.ErrInvalidCapacity
	}
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	sl, err := s.slotRepo.SetCapacity(ctx, p.ID, slot.NormalizeDate(date), capacity)
	if err != nil {
		return nil, err
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateAvailability(ctx, p.ID)
	}
	return sl, nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/clock"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/metrics"
)

// 仮押さえを解放した経路（holds_released_total の source ラベル）
const (
	releaseSourceAPI    = "api"
	releaseSourceCancel = "cancel"
	releaseSourceReaper = "reaper"
)

// ReservationService は枠の予約済み数を変更する唯一の経路
//
// 予約済み数の増減はすべて条件付き UPDATE で行い、同じ枠への同時更新は
// PostgreSQL の行ロックで直列化される。仮押さえの状態遷移も条件付き UPDATE で行うので、
// 解放が重複しても在庫が二重に戻ることはない。
type ReservationService struct {
	txManager   transaction.Manager
	productRepo product.Repository
	slotRepo    slot.Repository
	holdRepo    hold.Repository
	invalidator AvailabilityInvalidator
	clock       clock.Clock
	holdTTL     time.Duration
	metrics     *metrics.Metrics
}

// ReservationOption は ReservationService の設定を変更する
type ReservationOption func(*ReservationService)

// WithHoldTTL は仮押さえの有効期間を設定する
func WithHoldTTL(ttl time.Duration) ReservationOption {
	return func(s *ReservationService) {
		if ttl > 0 {
			s.holdTTL = ttl
		}
	}
}

// WithClock は現在時刻の取得元を差し替える
func WithClock(c clock.Clock) ReservationOption {
	return func(s *ReservationService) { s.clock = c }
}

// WithInvalidator はカレンダーキャッシュの無効化先を設定する
func WithInvalidator(inv AvailabilityInvalidator) ReservationOption {
	return func(s *ReservationService) { s.invalidator = inv }
}

// WithMetrics はメトリクスの記録先を設定する
func WithMetrics(m *metrics.Metrics) ReservationOption {
	return func(s *ReservationService) { s.metrics = m }
}

func NewReservationService(txm transaction.Manager, pr product.Repository, sr slot.Repository, hr hold.Repository, opts ...ReservationOption) *ReservationService {
	s := &ReservationService{
		txManager:   txm,
		productRepo: pr,
		slotRepo:    sr,
		holdRepo:    hr,
		clock:       clock.NewSystem(),
		holdTTL:     hold.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ReserveInput struct {
	ProductID string
	Date      time.Time
	Quantity  int
	BookingID string // 単独の仮押さえでは空
}

// Reserve は枠から quantity 名分を確保し、仮押さえを返す
// 残り定員が足りなければ何も変更せず ErrInsufficientCapacity を返す
func (s *ReservationService) Reserve(ctx context.Context, input ReserveInput) (*hold.Hold, error) {
	if input.Quantity <= 0 {
		return nil, slot.ErrInvalidQuantity
	}
	p, err := s.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	var h *hold.Hold
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		var err error
		h, err = s.ReserveTx(ctx, tx, input, p.DefaultCapacity)
		return err
	})
	if err != nil {
		s.countHold(err)
		return nil, err
	}
	s.countHold(nil)
	s.invalidate(ctx, h.ProductID)
	return h, nil
}

// ReserveTx は呼び出し元のトランザクション内で仮押さえを作成する
// 枠が未作成なら defaultCapacity で作成してから加算する
func (s *ReservationService) ReserveTx(ctx context.Context, tx transaction.Tx, input ReserveInput, defaultCapacity int) (*hold.Hold, error) {
	date := slot.NormalizeDate(input.Date)
	h := hold.NewHold(input.BookingID, input.ProductID, date, input.Quantity, s.clock.Now(), s.holdTTL)
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := s.slotRepo.Ensure(ctx, tx, input.ProductID, date, defaultCapacity); err != nil {
		return nil, err
	}
	if _, err := s.slotRepo.Increment(ctx, tx, input.ProductID, date, input.Quantity); err != nil {
		return nil, err
	}
	if err := s.holdRepo.Create(ctx, tx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Release は単独の仮押さえを解放して在庫を戻す
// 既に解放済み・確定済み・存在しない場合は何もせず false を返す。
// 予約に紐づく仮押さえは ErrHoldOwnedByBooking（予約のキャンセルで解放する）
func (s *ReservationService) Release(ctx context.Context, holdID string) (bool, error) {
	h, err := s.holdRepo.GetByID(ctx, holdID)
	if err != nil {
		if errors.Is(err, hold.ErrHoldNotFound) {
			return false, nil
		}
		return false, err
	}
	if h.OwnedByBooking() {
		return false, hold.ErrHoldOwnedByBooking
	}
	return s.release(ctx, holdID, releaseSourceAPI)
}

func (s *ReservationService) release(ctx context.Context, holdID, source string) (bool, error) {
	var released *hold.Hold
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		var err error
		released, err = s.ReleaseTx(ctx, tx, holdID)
		return err
	})
	if err != nil {
		return false, err
	}
	if released == nil {
		return false, nil
	}
	s.countReleased(source, 1)
	s.invalidate(ctx, released.ProductID)
	return true, nil
}

// ReleaseTx は呼び出し元のトランザクション内で仮押さえを解放する
// 状態を active から released に変更できた場合に限り予約済み数を減らし、その仮押さえを返す
func (s *ReservationService) ReleaseTx(ctx context.Context, tx transaction.Tx, holdID string) (*hold.Hold, error) {
	h, err := s.holdRepo.MarkReleased(ctx, tx, holdID, s.clock.Now())
	if err != nil {
		if errors.Is(err, hold.ErrHoldNotActive) || errors.Is(err, hold.ErrHoldNotFound) {
			logger.Info("解放対象の仮押さえが有効ではないためスキップ", logger.HoldID(holdID), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	if _, err := s.slotRepo.Decrement(ctx, tx, h.ProductID, h.Date, h.Quantity); err != nil {
		logger.Error("予約済み数を戻せません",
			logger.HoldID(h.ID),
			logger.ProductID(h.ProductID),
			logger.SlotDate(slot.FormatDate(h.Date)),
			zap.Int("quantity", h.Quantity),
			zap.Error(err),
		)
		return nil, fmt.Errorf("仮押さえ解放に失敗: %w", err)
	}
	return h, nil
}

// Confirm は期限内の単独の仮押さえを確定する。確定済みならそのまま返す
// 期限切れまたは解放済みの場合は ErrHoldExpired、予約に紐づく仮押さえは ErrHoldOwnedByBooking
func (s *ReservationService) Confirm(ctx context.Context, holdID string) (*hold.Hold, error) {
	h, err := s.holdRepo.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if h.OwnedByBooking() {
		return nil, hold.ErrHoldOwnedByBooking
	}
	if h.Status == hold.StatusActive && h.IsExpired(s.clock.Now()) {
		return nil, hold.ErrHoldExpired
	}
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		var err error
		h, err = s.ConfirmTx(ctx, tx, holdID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ConfirmTx は呼び出し元のトランザクション内で仮押さえを確定する
// 予約済み数は仮押さえ作成時に加算済みなので変更しない
func (s *ReservationService) ConfirmTx(ctx context.Context, tx transaction.Tx, holdID string) (*hold.Hold, error) {
	h, err := s.holdRepo.MarkConfirmed(ctx, tx, holdID, s.clock.Now())
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, hold.ErrHoldNotActive) {
		return nil, err
	}
	current, err := s.holdRepo.GetByIDTx(ctx, tx, holdID)
	if err != nil {
		return nil, err
	}
	if current.Status == hold.StatusConfirmed {
		return current, nil
	}
	return nil, hold.ErrHoldExpired
}

func (s *ReservationService) GetHold(ctx context.Context, id string) (*hold.Hold, error) {
	return s.holdRepo.GetByID(ctx, id)
}

// InvalidateAvailability は商品のカレンダーキャッシュを無効化する
func (s *ReservationService) InvalidateAvailability(ctx context.Context, productIDs ...string) {
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		s.invalidate(ctx, id)
	}
}

func (s *ReservationService) invalidate(ctx context.Context, productID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateAvailability(ctx, productID)
	}
}

func (s *ReservationService) countHold(err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, slot.ErrInsufficientCapacity):
		status = "insufficient"
	default:
		status = "error"
	}
	s.metrics.HoldsTotal.WithLabelValues(status).Inc()
}

func (s *ReservationService) countReleased(source string, n int) {
	if s.metrics == nil || n == 0 {
		return
	}
	s.metrics.HoldsReleasedTotal.WithLabelValues(source).Add(float64(n))
}

package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/clock"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/metrics"
)

// VoucherRenderer は確定済み予約のバウチャーを生成する
type VoucherRenderer interface {
	Render(b *booking.Booking, products map[string]*product.Product) ([]byte, error)
}

// BookingService は予約のライフサイクルを管理する
//
// 状態遷移は予約行を FOR UPDATE でロックして直列化する。
// 枠の予約済み数は ReservationService を通してのみ変更し、
// ライフサイクルイベントはコミット後に EventPublisher へ渡す（送出完了は待たない）。
type BookingService struct {
	txManager    transaction.Manager
	bookingRepo  booking.Repository
	holdRepo     hold.Repository
	productRepo  product.Repository
	reservations *ReservationService
	publisher    booking.EventPublisher
	voucher      VoucherRenderer
	clock        clock.Clock
	metrics      *metrics.Metrics
}

// BookingOption は BookingService の設定を変更する
type BookingOption func(*BookingService)

func WithPublisher(p booking.EventPublisher) BookingOption {
	return func(s *BookingService) { s.publisher = p }
}

func WithVoucherRenderer(r VoucherRenderer) BookingOption {
	return func(s *BookingService) { s.voucher = r }
}

func WithBookingClock(c clock.Clock) BookingOption {
	return func(s *BookingService) { s.clock = c }
}

func WithBookingMetrics(m *metrics.Metrics) BookingOption {
	return func(s *BookingService) { s.metrics = m }
}

func NewBookingService(txm transaction.Manager, br booking.Repository, hr hold.Repository, pr product.Repository, rs *ReservationService, opts ...BookingOption) *BookingService {
	s := &BookingService{
		txManager:    txm,
		bookingRepo:  br,
		holdRepo:     hr,
		productRepo:  pr,
		reservations: rs,
		clock:        clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type BookingItemInput struct {
	ProductID string
	Date      time.Time
	Quantity  int
}

type CreateBookingInput struct {
	UserID         string
	Items          []BookingItemInput
	IdempotencyKey string
}

// CreateBooking は保留中の予約を作成し、全明細の定員を同じトランザクションで確保する
// 1件でも確保できなければ何も確保しない。同じ冪等性キーでの再要求は既存の予約を返す
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	if input.IdempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, input.IdempotencyKey, input.UserID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, booking.ErrBookingNotFound) {
			return nil, err
		}
	}

	products, err := s.loadProducts(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	items := make([]booking.Item, len(input.Items))
	for i, in := range input.Items {
		var unitPrice int
		if p, ok := products[in.ProductID]; ok {
			unitPrice = p.Price
		}
		items[i] = booking.Item{
			ProductID: in.ProductID,
			Date:      slot.NormalizeDate(in.Date),
			Quantity:  in.Quantity,
			UnitPrice: unitPrice,
		}
	}

	now := s.clock.Now()
	b := booking.NewBooking(input.UserID, input.IdempotencyKey, items, now)
	if err := b.Validate(); err != nil {
		return nil, err
	}

	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		// 枠のロック順を (商品, 日付) で揃えてデッドロックを避ける
		for _, i := range reserveOrder(b.Items) {
			it := b.Items[i]
			h, err := s.reservations.ReserveTx(ctx, tx, ReserveInput{
				ProductID: it.ProductID,
				Date:      it.Date,
				Quantity:  it.Quantity,
				BookingID: b.ID,
			}, products[it.ProductID].DefaultCapacity)
			if err != nil {
				return err
			}
			b.Items[i].HoldID = h.ID
		}
		return s.bookingRepo.Create(ctx, tx, b)
	})
	if err != nil {
		s.reservations.countHold(err)
		if errors.Is(err, booking.ErrIdempotencyKeyAlreadyExists) {
			// 同じキーの予約が並行して作成された
			return s.findByIdempotencyKey(ctx, input.IdempotencyKey, input.UserID)
		}
		return nil, err
	}

	for range b.Items {
		s.reservations.countHold(nil)
	}
	s.reservations.InvalidateAvailability(ctx, productIDs(b.Items)...)
	s.countBooking("created")
	s.emit(ctx, booking.EventCreated, b)
	logger.Info("予約を作成しました",
		logger.BookingID(b.ID),
		zap.String("user_id", b.UserID),
		zap.Int("items", len(b.Items)),
	)
	return b, nil
}

// RecordPayment は支払い結果を予約に反映する
func (s *BookingService) RecordPayment(ctx context.Context, id string, status booking.PaymentStatus) (*booking.Booking, error) {
	switch status {
	case booking.PaymentProcessing:
		var result *booking.Booking
		err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
			b, err := s.bookingRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := b.MarkPaymentProcessing(s.clock.Now()); err != nil {
				return err
			}
			result = b
			return s.bookingRepo.Update(ctx, tx, b)
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	case booking.PaymentCompleted:
		return s.ConfirmBooking(ctx, id)
	case booking.PaymentFailed:
		return s.CancelBooking(ctx, id, booking.ReasonPaymentFailed)
	default:
		return nil, booking.ErrInvalidPaymentStatus
	}
}

// ConfirmBooking は保留中の予約を確定し、全仮押さえを確定済みにする
// 確定済みの予約はそのまま返す。期限切れの仮押さえがあれば予約をキャンセルして ErrHoldExpired を返す
func (s *BookingService) ConfirmBooking(ctx context.Context, id string) (*booking.Booking, error) {
	var (
		result  *booking.Booking
		changed bool
		expired bool
	)
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		b, err := s.bookingRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status == booking.StatusConfirmed {
			result = b
			return nil
		}
		if !b.IsPending() {
			return booking.ErrBookingNotPending
		}
		for _, holdID := range b.HoldIDs() {
			if _, err := s.reservations.ConfirmTx(ctx, tx, holdID); err != nil {
				if errors.Is(err, hold.ErrHoldExpired) {
					expired = true
				}
				return err
			}
		}
		if err := b.Confirm(s.clock.Now()); err != nil {
			return err
		}
		if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
			return err
		}
		result, changed = b, true
		return nil
	})
	if err != nil {
		if expired {
			if _, _, cerr := s.cancel(ctx, id, booking.ReasonHoldExpired, releaseSourceCancel); cerr != nil {
				logger.Error("期限切れ予約のキャンセルに失敗", logger.BookingID(id), zap.Error(cerr))
			}
		}
		return nil, err
	}
	if changed {
		s.countBooking("confirmed")
		s.emit(ctx, booking.EventConfirmed, result)
	}
	return result, nil
}

// CancelBooking は保留中の予約をキャンセルし、有効な仮押さえの在庫を戻す
// キャンセル済みならそのまま返す。確定済み・完了済みは ErrBookingNotCancellable
func (s *BookingService) CancelBooking(ctx context.Context, id string, reason booking.CancelReason) (*booking.Booking, error) {
	b, _, err := s.cancel(ctx, id, reason, releaseSourceCancel)
	return b, err
}

func (s *BookingService) cancel(ctx context.Context, id string, reason booking.CancelReason, source string) (*booking.Booking, int, error) {
	var (
		result   *booking.Booking
		changed  bool
		released []*hold.Hold
	)
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		released = released[:0]
		b, err := s.bookingRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		changed, err = b.Cancel(reason, s.clock.Now())
		if err != nil {
			return err
		}
		result = b
		if !changed {
			return nil
		}
		for _, holdID := range b.HoldIDs() {
			h, err := s.reservations.ReleaseTx(ctx, tx, holdID)
			if err != nil {
				return err
			}
			if h != nil {
				released = append(released, h)
			}
		}
		return s.bookingRepo.Update(ctx, tx, b)
	})
	if err != nil {
		return nil, 0, err
	}
	if !changed {
		return result, 0, nil
	}

	ids := make([]string, len(released))
	for i, h := range released {
		ids[i] = h.ProductID
	}
	s.reservations.InvalidateAvailability(ctx, ids...)
	s.reservations.countReleased(source, len(released))
	s.countBooking("cancelled")
	s.emit(ctx, booking.EventCancelled, result)
	logger.Info("予約をキャンセルしました",
		logger.BookingID(result.ID),
		zap.String("reason", string(reason)),
		zap.Int("released_holds", len(released)),
	)
	return result, len(released), nil
}

// CompleteBooking はツアー催行後に確定済み予約を完了にする。定員は変化しない
func (s *BookingService) CompleteBooking(ctx context.Context, id string) (*booking.Booking, error) {
	var result *booking.Booking
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		b, err := s.bookingRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := b.Complete(s.clock.Now()); err != nil {
			return err
		}
		result = b
		return s.bookingRepo.Update(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	s.countBooking("completed")
	s.emit(ctx, booking.EventCompleted, result)
	return result, nil
}

// ReapExpiredHolds は期限切れの有効な仮押さえを最大 limit 件処理する
// scanned は取得した件数、released は在庫を戻した仮押さえの件数。
// 予約に紐づく仮押さえは予約ごとキャンセルする。個別の失敗はログに残して続行する
func (s *BookingService) ReapExpiredHolds(ctx context.Context, limit int) (scanned, released int, err error) {
	holds, err := s.holdRepo.ListExpiredActive(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, 0, fmt.Errorf("期限切れ仮押さえ取得に失敗: %w", err)
	}

	for _, h := range holds {
		if err := ctx.Err(); err != nil {
			return scanned, released, err
		}
		scanned++
		if !h.OwnedByBooking() {
			released += s.reapHold(ctx, h)
			continue
		}

		_, n, err := s.cancel(ctx, h.BookingID, booking.ReasonHoldExpired, releaseSourceReaper)
		switch {
		case errors.Is(err, booking.ErrBookingNotCancellable):
			// 確定済み予約に有効な仮押さえが残っている場合は仮押さえだけを戻す
			logger.Warn("確定済み予約に期限切れの仮押さえが残っています",
				logger.BookingID(h.BookingID), logger.HoldID(h.ID))
			released += s.reapHold(ctx, h)
		case err != nil:
			logger.Error("期限切れ予約のキャンセルに失敗",
				logger.BookingID(h.BookingID), logger.HoldID(h.ID), zap.Error(err))
		case n == 0:
			// キャンセル済みの予約に有効な仮押さえが残っていた
			released += s.reapHold(ctx, h)
		default:
			released += n
		}
	}
	return scanned, released, nil
}

// reapHold は仮押さえ1件を解放し、在庫を戻した件数を返す
func (s *BookingService) reapHold(ctx context.Context, h *hold.Hold) int {
	ok, err := s.reservations.release(ctx, h.ID, releaseSourceReaper)
	if err != nil {
		logger.Error("期限切れ仮押さえの解放に失敗", logger.HoldID(h.ID), zap.Error(err))
		return 0
	}
	if ok {
		return 1
	}
	return 0
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

func (s *BookingService) GetBookingByConfirmationCode(ctx context.Context, code string) (*booking.Booking, error) {
	return s.bookingRepo.GetByConfirmationCode(ctx, code)
}

func (s *BookingService) GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookingRepo.GetByUserID(ctx, userID, limit, offset)
}

// RenderVoucher は確定済みまたは完了済みの予約のバウチャーPDFを返す
func (s *BookingService) RenderVoucher(ctx context.Context, id string) (*booking.Booking, []byte, error) {
	if s.voucher == nil {
		return nil, nil, errors.New("バウチャー生成は無効です")
	}
	b, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if b.Status != booking.StatusConfirmed && b.Status != booking.StatusCompleted {
		return nil, nil, booking.ErrBookingNotConfirmed
	}
	products := make(map[string]*product.Product)
	for _, it := range b.Items {
		if _, ok := products[it.ProductID]; ok {
			continue
		}
		p, err := s.productRepo.GetByID(ctx, it.ProductID)
		if err != nil {
			logger.Warn("バウチャー用の商品取得に失敗", logger.ProductID(it.ProductID), zap.Error(err))
			continue
		}
		products[it.ProductID] = p
	}
	pdf, err := s.voucher.Render(b, products)
	if err != nil {
		return nil, nil, err
	}
	return b, pdf, nil
}

func (s *BookingService) findByIdempotencyKey(ctx context.Context, key, userID string) (*booking.Booking, error) {
	existing, err := s.bookingRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}
	if existing.UserID != userID {
		return nil, booking.ErrIdempotencyKeyAlreadyExists
	}
	return existing, nil
}

func (s *BookingService) loadProducts(ctx context.Context, items []BookingItemInput) (map[string]*product.Product, error) {
	products := make(map[string]*product.Product, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			continue
		}
		if _, ok := products[it.ProductID]; ok {
			continue
		}
		p, err := s.productRepo.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		products[it.ProductID] = p
	}
	return products, nil
}

func (s *BookingService) emit(ctx context.Context, t booking.EventType, b *booking.Booking) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, booking.NewEvent(t, b, s.clock.Now())); err != nil {
		logger.Warn("ライフサイクルイベントを送出できません",
			logger.BookingID(b.ID), zap.String("type", string(t)), zap.Error(err))
	}
}

func (s *BookingService) countBooking(status string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(status).Inc()
	}
}

// reserveOrder は明細を (商品ID, 日付) 順に並べたインデックスを返す
func reserveOrder(items []booking.Item) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := items[order[a]], items[order[b]]
		if x.ProductID != y.ProductID {
			return x.ProductID < y.ProductID
		}
		return x.Date.Before(y.Date)
	})
	return order
}

func productIDs(items []booking.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	return ids
}

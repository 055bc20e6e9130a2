package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// PaymentStatus は支払いの状態を表す
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// CancelReason はキャンセル理由
type CancelReason string

const (
	ReasonUserCancelled CancelReason = "user_cancelled"
	ReasonPaymentFailed CancelReason = "payment_failed"
	ReasonHoldExpired   CancelReason = "hold_expired"
)

// Item は予約明細（1つの枠に対する人数）
type Item struct {
	ProductID string
	Date      time.Time
	Quantity  int
	UnitPrice int
	HoldID    string
}

// Subtotal は明細の小計を返す
func (i Item) Subtotal() int {
	return i.UnitPrice * i.Quantity
}

// Booking は予約集約を表す。明細は予約が所有する
type Booking struct {
	ID               string
	UserID           string
	Items            []Item
	Status           Status
	PaymentStatus    PaymentStatus
	TotalPrice       int
	ConfirmationCode string
	IdempotencyKey   string
	CancelReason     CancelReason
	ConfirmedAt      *time.Time
	CancelledAt      *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewBooking は保留中の新しい予約を作成する
func NewBooking(userID, idempotencyKey string, items []Item, now time.Time) *Booking {
	b := &Booking{
		ID:               uuid.NewString(),
		UserID:           userID,
		Items:            items,
		Status:           StatusPending,
		PaymentStatus:    PaymentPending,
		ConfirmationCode: GenerateConfirmationCode(),
		IdempotencyKey:   idempotencyKey,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, it := range items {
		b.TotalPrice += it.Subtotal()
	}
	return b
}

// GenerateConfirmationCode は予約確認コードを生成する
func GenerateConfirmationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TR-" + strings.ToUpper(raw[:10])
}

// IsPending は予約が保留中かを返す
func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

// HoldIDs は明細に紐づく仮押さえIDを返す
func (b *Booking) HoldIDs() []string {
	ids := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		if it.HoldID != "" {
			ids = append(ids, it.HoldID)
		}
	}
	return ids
}

// MarkPaymentProcessing は支払い処理中にする
func (b *Booking) MarkPaymentProcessing(now time.Time) error {
	if b.Status != StatusPending {
		return ErrBookingNotPending
	}
	if b.PaymentStatus != PaymentPending && b.PaymentStatus != PaymentProcessing {
		return ErrInvalidPaymentTransition
	}
	b.PaymentStatus = PaymentProcessing
	b.UpdatedAt = now
	return nil
}

// Confirm は支払い完了により予約を確定する
func (b *Booking) Confirm(now time.Time) error {
	switch b.Status {
	case StatusPending:
	case StatusConfirmed:
		return ErrBookingAlreadyConfirmed
	default:
		return ErrBookingNotPending
	}
	b.Status = StatusConfirmed
	b.PaymentStatus = PaymentCompleted
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return nil
}

// Cancel は予約をキャンセルする
// 既にキャンセル済みなら何もせず false を返す
func (b *Booking) Cancel(reason CancelReason, now time.Time) (bool, error) {
	switch b.Status {
	case StatusCancelled:
		return false, nil
	case StatusConfirmed, StatusCompleted:
		return false, ErrBookingNotCancellable
	}
	if reason == "" {
		reason = ReasonUserCancelled
	}
	b.Status = StatusCancelled
	b.CancelReason = reason
	if reason == ReasonPaymentFailed {
		b.PaymentStatus = PaymentFailed
	}
	b.CancelledAt = &now
	b.UpdatedAt = now
	return true, nil
}

// Complete はツアー催行後に予約を完了にする
func (b *Booking) Complete(now time.Time) error {
	if b.Status != StatusConfirmed {
		return ErrBookingNotConfirmed
	}
	b.Status = StatusCompleted
	b.CompletedAt = &now
	b.UpdatedAt = now
	return nil
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if b.IdempotencyKey == "" {
		return ErrIdempotencyKeyRequired
	}
	if len(b.Items) == 0 {
		return ErrItemsRequired
	}
	for _, it := range b.Items {
		if it.ProductID == "" {
			return ErrProductIDRequired
		}
		if it.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

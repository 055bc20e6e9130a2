package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType はライフサイクルイベントの種別
type EventType string

const (
	EventCreated   EventType = "booking.created"
	EventConfirmed EventType = "booking.confirmed"
	EventCancelled EventType = "booking.cancelled"
	EventCompleted EventType = "booking.completed"
)

// Event は予約の状態遷移を外部（通知・分析・ポイント付与）へ伝える
type Event struct {
	ID               string
	Type             EventType
	BookingID        string
	UserID           string
	ConfirmationCode string
	Status           Status
	PaymentStatus    PaymentStatus
	TotalPrice       int
	Reason           CancelReason
	Items            []Item
	OccurredAt       time.Time
}

// NewEvent は予約の現在の状態からイベントを作成する
func NewEvent(t EventType, b *Booking, at time.Time) Event {
	items := make([]Item, len(b.Items))
	copy(items, b.Items)
	return Event{
		ID:               uuid.NewString(),
		Type:             t,
		BookingID:        b.ID,
		UserID:           b.UserID,
		ConfirmationCode: b.ConfirmationCode,
		Status:           b.Status,
		PaymentStatus:    b.PaymentStatus,
		TotalPrice:       b.TotalPrice,
		Reason:           b.CancelReason,
		Items:            items,
		OccurredAt:       at,
	}
}

// EventPublisher はライフサイクルイベントの送出先
// 実装は呼び出し元をブロックしてはならない
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

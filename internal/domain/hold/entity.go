package hold

import (
	"time"

	"github.com/google/uuid"
)

// Status は仮押さえの状態を表す
type Status string

const (
	StatusActive    Status = "active"
	StatusReleased  Status = "released"
	StatusConfirmed Status = "confirmed"
)

// DefaultTTL は仮押さえの既定有効期間
const DefaultTTL = 15 * time.Minute

// Hold は支払い確定待ちの間、枠の定員を一時的に確保する
type Hold struct {
	ID          string
	BookingID   string // 予約に紐づかない単独の仮押さえでは空
	ProductID   string
	Date        time.Time
	Quantity    int
	Status      Status
	ExpiresAt   time.Time
	ReleasedAt  *time.Time
	ConfirmedAt *time.Time
	CreatedAt   time.Time
}

// NewHold は now から ttl 後に失効する仮押さえを作成する
func NewHold(bookingID, productID string, date time.Time, quantity int, now time.Time, ttl time.Duration) *Hold {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Hold{
		ID:        uuid.NewString(),
		BookingID: bookingID,
		ProductID: productID,
		Date:      date,
		Quantity:  quantity,
		Status:    StatusActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsExpired は now 時点で有効期限を過ぎているかを返す
func (h *Hold) IsExpired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// OwnedByBooking は予約の明細として作成された仮押さえかを返す
func (h *Hold) OwnedByBooking() bool {
	return h.BookingID != ""
}

// Validate は仮押さえの検証を行う
func (h *Hold) Validate() error {
	if h.ProductID == "" {
		return ErrProductIDRequired
	}
	if h.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

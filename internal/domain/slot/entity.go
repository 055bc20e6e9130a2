package slot

import (
	"fmt"
	"time"
)

// DateLayout は枠の日付表現（UTC の暦日）
const DateLayout = "2006-01-02"

// Slot は (商品, 日付) ごとの定員レコードを表す
// ReservedCount は予約ライター経由でのみ変更される
type Slot struct {
	ProductID     string
	Date          time.Time
	TotalCapacity int
	ReservedCount int
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSlot は予約数0の新しい枠を作成する
func NewSlot(productID string, date time.Time, capacity int) *Slot {
	now := time.Now()
	return &Slot{
		ProductID:     productID,
		Date:          NormalizeDate(date),
		TotalCapacity: capacity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Remaining は残り定員を返す（負にはならない）
func (s *Slot) Remaining() int {
	if r := s.TotalCapacity - s.ReservedCount; r > 0 {
		return r
	}
	return 0
}

// Utilization は稼働率（0〜1）を返す。定員0の枠は0
func (s *Slot) Utilization() float64 {
	if s.TotalCapacity <= 0 {
		return 0
	}
	return float64(s.ReservedCount) / float64(s.TotalCapacity)
}

// CanReserve は quantity 名分の予約が可能かを検証する
func (s *Slot) CanReserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > s.Remaining() {
		return ErrInsufficientCapacity
	}
	return nil
}

// CanSetCapacity は定員を capacity に変更できるかを検証する
func (s *Slot) CanSetCapacity(capacity int) error {
	if capacity < 0 || capacity < s.ReservedCount {
		return ErrInvalidCapacity
	}
	return nil
}

// Validate は枠の不変条件を検証する
func (s *Slot) Validate() error {
	if s.ProductID == "" {
		return ErrProductIDRequired
	}
	if s.TotalCapacity < 0 || s.ReservedCount < 0 || s.ReservedCount > s.TotalCapacity {
		return ErrInvalidCapacity
	}
	return nil
}

// NormalizeDate は時刻を UTC の 0 時に切り捨てる
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate は YYYY-MM-DD 形式の日付を解析する
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate は日付を YYYY-MM-DD 形式に整形する
func FormatDate(t time.Time) string {
	return NormalizeDate(t).Format(DateLayout)
}

// Days は start から end まで（両端含む）の日数を返す
func Days(start, end time.Time) int {
	s, e := NormalizeDate(start), NormalizeDate(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/application"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

// ProductServiceInterface はツアー商品サービスのインターフェース
type ProductServiceInterface interface {
	CreateProduct(ctx context.Context, input application.CreateProductInput) (*product.Product, error)
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]*product.Product, error)
}

// SlotServiceInterface は枠サービスのインターフェース
type SlotServiceInterface interface {
	GetSlot(ctx context.Context, productID string, date time.Time) (*slot.Slot, error)
	SetCapacity(ctx context.Context, productID string, date time.Time, capacity int) (*slot.Slot, error)
}

// AvailabilityServiceInterface は空き状況サービスのインターフェース
type AvailabilityServiceInterface interface {
	GetCalendar(ctx context.Context, productID string, start, end time.Time) ([]slot.CalendarEntry, error)
	GetStats(ctx context.Context, productID string, start, end time.Time) (*slot.Stats, error)
}

// HoldServiceInterface は仮押さえサービスのインターフェース
type HoldServiceInterface interface {
	Reserve(ctx context.Context, input application.ReserveInput) (*hold.Hold, error)
	GetHold(ctx context.Context, id string) (*hold.Hold, error)
	Release(ctx context.Context, holdID string) (bool, error)
	Confirm(ctx context.Context, holdID string) (*hold.Hold, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	GetBookingByConfirmationCode(ctx context.Context, code string) (*booking.Booking, error)
	GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error)
	RecordPayment(ctx context.Context, id string, status booking.PaymentStatus) (*booking.Booking, error)
	ConfirmBooking(ctx context.Context, id string) (*booking.Booking, error)
	CancelBooking(ctx context.Context, id string, reason booking.CancelReason) (*booking.Booking, error)
	CompleteBooking(ctx context.Context, id string) (*booking.Booking, error)
	RenderVoucher(ctx context.Context, id string) (*booking.Booking, []byte, error)
}

var (
	_ ProductServiceInterface      = (*application.ProductService)(nil)
	_ SlotServiceInterface         = (*application.SlotService)(nil)
	_ AvailabilityServiceInterface = (*application.AvailabilityService)(nil)
	_ HoldServiceInterface         = (*application.ReservationService)(nil)
	_ BookingServiceInterface      = (*application.BookingService)(nil)
)

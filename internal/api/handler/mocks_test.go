package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/application"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

// MockProductService はProductServiceInterfaceのモック
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) CreateProduct(ctx context.Context, input application.CreateProductInput) (*product.Product, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) ListProducts(ctx context.Context, limit, offset int) ([]*product.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*product.Product), args.Error(1)
}

// MockSlotService はSlotServiceInterfaceのモック
type MockSlotService struct {
	mock.Mock
}

func (m *MockSlotService) GetSlot(ctx context.Context, productID string, date time.Time) (*slot.Slot, error) {
	args := m.Called(ctx, productID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.Slot), args.Error(1)
}

func (m *MockSlotService) SetCapacity(ctx context.Context, productID string, date time.Time, capacity int) (*slot.Slot, error) {
	args := m.Called(ctx, productID, date, capacity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.Slot), args.Error(1)
}

// MockAvailabilityService はAvailabilityServiceInterfaceのモック
type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) GetCalendar(ctx context.Context, productID string, start, end time.Time) ([]slot.CalendarEntry, error) {
	args := m.Called(ctx, productID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]slot.CalendarEntry), args.Error(1)
}

func (m *MockAvailabilityService) GetStats(ctx context.Context, productID string, start, end time.Time) (*slot.Stats, error) {
	args := m.Called(ctx, productID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.Stats), args.Error(1)
}

// MockHoldService はHoldServiceInterfaceのモック
type MockHoldService struct {
	mock.Mock
}

func (m *MockHoldService) Reserve(ctx context.Context, input application.ReserveInput) (*hold.Hold, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldService) GetHold(ctx context.Context, id string) (*hold.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldService) Release(ctx context.Context, holdID string) (bool, error) {
	args := m.Called(ctx, holdID)
	return args.Bool(0), args.Error(1)
}

func (m *MockHoldService) Confirm(ctx context.Context, holdID string) (*hold.Hold, error) {
	args := m.Called(ctx, holdID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) bookingResult(args mock.Arguments) (*booking.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error) {
	return m.bookingResult(m.Called(ctx, input))
}

func (m *MockBookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return m.bookingResult(m.Called(ctx, id))
}

func (m *MockBookingService) GetBookingByConfirmationCode(ctx context.Context, code string) (*booking.Booking, error) {
	return m.bookingResult(m.Called(ctx, code))
}

func (m *MockBookingService) GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingService) RecordPayment(ctx context.Context, id string, status booking.PaymentStatus) (*booking.Booking, error) {
	return m.bookingResult(m.Called(ctx, id, status))
}

func (m *MockBookingService) ConfirmBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return m.bookingResult(m.Called(ctx, id))
}

func (m *MockBookingService) CancelBooking(ctx context.Context, id string, reason booking.CancelReason) (*booking.Booking, error) {
	return m.bookingResult(m.Called(ctx, id, reason))
}

func (m *MockBookingService) CompleteBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return m.bookingResult(m.Called(ctx, id))
}

func (m *MockBookingService) RenderVoucher(ctx context.Context, id string) (*booking.Booking, []byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*booking.Booking), args.Get(1).([]byte), args.Error(2)
}

var (
	_ ProductServiceInterface      = (*MockProductService)(nil)
	_ SlotServiceInterface         = (*MockSlotService)(nil)
	_ AvailabilityServiceInterface = (*MockAvailabilityService)(nil)
	_ HoldServiceInterface         = (*MockHoldService)(nil)
	_ BookingServiceInterface      = (*MockBookingService)(nil)
)

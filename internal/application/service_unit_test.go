package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-tour-slot-reservation/internal/infrastructure/redis"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockProductRepository implements product.Repository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, p *product.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, limit, offset int) ([]*product.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*product.Product), args.Error(1)
}

// MockSlotRepository implements slot.Repository
type MockSlotRepository struct {
	mock.Mock
}

func (m *MockSlotRepository) GetOrCreate(ctx context.Context, productID string, date time.Time, defaultCapacity int) (*slot.Slot, error) {
	args := m.Called(ctx, productID, date, defaultCapacity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.Slot), args.Error(1)
}

func (m *MockSlotRepository) ListRange(ctx context.Context, productID string, start, end time.Time) ([]*slot.Slot, error) {
	args := m.Called(ctx, productID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*slot.Slot), args.Error(1)
}

func (m *MockSlotRepository) SetCapacity(ctx context.Context, productID string, date time.Time, capacity int) (*slot.Slot, error) {
	args := m.Called(ctx, productID, date, capacity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.Slot), args.Error(1)
}

func (m *MockSlotRepository) Ensure(ctx context.Context, tx transaction.Tx, productID string, date time.Time, defaultCapacity int) error {
	args := m.Called(ctx, tx, productID, date, defaultCapacity)
	return args.Error(0)
}

func (m *MockSlotRepository) Increment(ctx context.Context, tx transaction.Tx, productID string, date time.Time, quantity int) (*slot.Slot, error) {
	args := m.Called(ctx, tx, productID, date, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.Slot), args.Error(1)
}

func (m *MockSlotRepository) Decrement(ctx context.Context, tx transaction.Tx, productID string, date time.Time, quantity int) (*slot.Slot, error) {
	args := m.Called(ctx, tx, productID, date, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.Slot), args.Error(1)
}

// MockHoldRepository implements hold.Repository
type MockHoldRepository struct {
	mock.Mock
}

func (m *MockHoldRepository) Create(ctx context.Context, tx transaction.Tx, h *hold.Hold) error {
	args := m.Called(ctx, tx, h)
	return args.Error(0)
}

func (m *MockHoldRepository) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) GetByIDTx(ctx context.Context, tx transaction.Tx, id string) (*hold.Hold, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) ListByBookingID(ctx context.Context, bookingID string) ([]*hold.Hold, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) MarkReleased(ctx context.Context, tx transaction.Tx, id string, at time.Time) (*hold.Hold, error) {
	args := m.Called(ctx, tx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) MarkConfirmed(ctx context.Context, tx transaction.Tx, id string, at time.Time) (*hold.Hold, error) {
	args := m.Called(ctx, tx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*hold.Hold), args.Error(1)
}

// MockCalendarCache implements redisinfra.CalendarCacheInterface
type MockCalendarCache struct {
	mock.Mock
}

func (m *MockCalendarCache) Version(ctx context.Context, productID string) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCalendarCache) Get(ctx context.Context, productID string, version int64, start, end time.Time) ([]slot.CalendarEntry, error) {
	args := m.Called(ctx, productID, version, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]slot.CalendarEntry), args.Error(1)
}

func (m *MockCalendarCache) Set(ctx context.Context, productID string, version int64, start, end time.Time, entries []slot.CalendarEntry) error {
	args := m.Called(ctx, productID, version, start, end, entries)
	return args.Error(0)
}

func (m *MockCalendarCache) Invalidate(ctx context.Context, productID string) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

// MockInvalidator implements AvailabilityInvalidator
type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) InvalidateAvailability(ctx context.Context, productID string) {
	m.Called(ctx, productID)
}

var (
	_ product.Repository                = (*MockProductRepository)(nil)
	_ slot.Repository                   = (*MockSlotRepository)(nil)
	_ hold.Repository                   = (*MockHoldRepository)(nil)
	_ redisinfra.CalendarCacheInterface = (*MockCalendarCache)(nil)
	_ AvailabilityInvalidator           = (*MockInvalidator)(nil)
)

func testProduct() *product.Product {
	return &product.Product{ID: "product-1", Name: "奈良公園ガイドツアー", Price: 4500, DefaultCapacity: 12}
}

// === ProductService ===

func TestProductService_CreateProduct_DefaultCapacity(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepository)
	svc := NewProductService(repo, 20)

	repo.On("Create", ctx, mock.MatchedBy(func(p *product.Product) bool {
		return p.Name == "奈良公園ガイドツアー" && p.DefaultCapacity == 20
	})).Return(nil)

	p, err := svc.CreateProduct(ctx, CreateProductInput{Name: "奈良公園ガイドツアー", Price: 4500})
	require.NoError(t, err)
	assert.Equal(t, 20, p.DefaultCapacity)
	repo.AssertExpectations(t)
}

func TestProductService_CreateProduct_ValidationError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepository)
	svc := NewProductService(repo, 20)

	tests := []struct {
		name    string
		input   CreateProductInput
		wantErr error
	}{
		{"名前なし", CreateProductInput{Price: 100}, product.ErrProductNameRequired},
		{"負の価格", CreateProductInput{Name: "x", Price: -1}, product.ErrInvalidPrice},
		{"負の既定定員", CreateProductInput{Name: "x", DefaultCapacity: -1}, product.ErrInvalidDefaultCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProductService_ListProducts_ClampsLimit(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepository)
	svc := NewProductService(repo, 20)

	repo.On("List", ctx, 20, 0).Return([]*product.Product{testProduct()}, nil).Once()
	repo.On("List", ctx, 100, 10).Return([]*product.Product{}, nil).Once()

	got, err := svc.ListProducts(ctx, 0, -5)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.ListProducts(ctx, 500, 10)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

// === SlotService ===

func TestSlotService_GetSlot_UsesProductDefaultCapacity(t *testing.T) {
	ctx := context.Background()
	pr := new(MockProductRepository)
	sr := new(MockSlotRepository)
	svc := NewSlotService(pr, sr, nil)

	date := time.Date(2025, 7, 1, 15, 30, 0, 0, time.UTC)
	day := slot.NormalizeDate(date)
	pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
	sr.On("GetOrCreate", ctx, "product-1", day, 12).Return(slot.NewSlot("product-1", day, 12), nil)

	got, err := svc.GetSlot(ctx, "product-1", date)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Remaining())
	sr.AssertExpectations(t)
}

func TestSlotService_SetCapacity(t *testing.T) {
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("負の定員は拒否", func(t *testing.T) {
		pr := new(MockProductRepository)
		sr := new(MockSlotRepository)
		svc := NewSlotService(pr, sr, nil)

		_, err := svc.SetCapacity(context.Background(), "product-1", day, -1)
		assert.ErrorIs(t, err, slot.ErrInvalidCapacity)
		pr.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("商品が存在しない", func(t *testing.T) {
		ctx := context.Background()
		pr := new(MockProductRepository)
		sr := new(MockSlotRepository)
		svc := NewSlotService(pr, sr, nil)

		pr.On("GetByID", ctx, "missing").Return(nil, product.ErrProductNotFound)
		_, err := svc.SetCapacity(ctx, "missing", day, 5)
		assert.ErrorIs(t, err, product.ErrProductNotFound)
	})

	t.Run("予約済み数を下回るとキャッシュは無効化しない", func(t *testing.T) {
		ctx := context.Background()
		pr := new(MockProductRepository)
		sr := new(MockSlotRepository)
		inv := new(MockInvalidator)
		svc := NewSlotService(pr, sr, inv)

		pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
		sr.On("SetCapacity", ctx, "product-1", day, 2).Return(nil, slot.ErrInvalidCapacity)

		_, err := svc.SetCapacity(ctx, "product-1", day, 2)
		assert.ErrorIs(t, err, slot.ErrInvalidCapacity)
		inv.AssertNotCalled(t, "InvalidateAvailability", mock.Anything, mock.Anything)
	})

	t.Run("成功時はキャッシュを無効化", func(t *testing.T) {
		ctx := context.Background()
		pr := new(MockProductRepository)
		sr := new(MockSlotRepository)
		inv := new(MockInvalidator)
		svc := NewSlotService(pr, sr, inv)

		pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
		sr.On("SetCapacity", ctx, "product-1", day, 30).Return(slot.NewSlot("product-1", day, 30), nil)
		inv.On("InvalidateAvailability", ctx, "product-1").Return()

		got, err := svc.SetCapacity(ctx, "product-1", day, 30)
		require.NoError(t, err)
		assert.Equal(t, 30, got.TotalCapacity)
		inv.AssertExpectations(t)
	})
}

// === AvailabilityService ===

func TestAvailabilityService_GetCalendar_CacheHit(t *testing.T) {
	ctx := context.Background()
	pr := new(MockProductRepository)
	sr := new(MockSlotRepository)
	cache := new(MockCalendarCache)
	svc := NewAvailabilityService(pr, sr, cache, 31)

	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	cached := []slot.CalendarEntry{
		{Date: start, TotalCapacity: 12, Remaining: 12},
		{Date: end, TotalCapacity: 12, ReservedCount: 2, Remaining: 10},
	}

	pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
	cache.On("Version", ctx, "product-1").Return(int64(4), nil)
	cache.On("Get", ctx, "product-1", int64(4), start, end).Return(cached, nil)

	got, err := svc.GetCalendar(ctx, "product-1", start, end)
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	sr.AssertNotCalled(t, "ListRange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailabilityService_GetCalendar_CacheMissStoresResult(t *testing.T) {
	ctx := context.Background()
	pr := new(MockProductRepository)
	sr := new(MockSlotRepository)
	cache := new(MockCalendarCache)
	svc := NewAvailabilityService(pr, sr, cache, 31)

	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)
	stored := &slot.Slot{ProductID: "product-1", Date: start.AddDate(0, 0, 1), TotalCapacity: 8, ReservedCount: 3}

	pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
	cache.On("Version", ctx, "product-1").Return(int64(0), nil)
	cache.On("Get", ctx, "product-1", int64(0), start, end).Return(nil, redisinfra.ErrCacheMiss)
	sr.On("ListRange", ctx, "product-1", start, end).Return([]*slot.Slot{stored}, nil)
	cache.On("Set", ctx, "product-1", int64(0), start, end, mock.MatchedBy(func(e []slot.CalendarEntry) bool {
		return len(e) == 3
	})).Return(nil)

	got, err := svc.GetCalendar(ctx, "product-1", start, end)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 12, got[0].Remaining)
	assert.Equal(t, 5, got[1].Remaining)
	assert.Equal(t, 12, got[2].Remaining)
	cache.AssertExpectations(t)
}

func TestAvailabilityService_GetCalendar_CacheErrorFallsBackToDB(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("世代取得に失敗", func(t *testing.T) {
		pr := new(MockProductRepository)
		sr := new(MockSlotRepository)
		cache := new(MockCalendarCache)
		svc := NewAvailabilityService(pr, sr, cache, 31)

		pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
		cache.On("Version", ctx, "product-1").Return(int64(0), errors.New("connection refused"))
		sr.On("ListRange", ctx, "product-1", start, start).Return([]*slot.Slot{}, nil)

		got, err := svc.GetCalendar(ctx, "product-1", start, start)
		require.NoError(t, err)
		assert.Len(t, got, 1)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("取得と保存に失敗", func(t *testing.T) {
		pr := new(MockProductRepository)
		sr := new(MockSlotRepository)
		cache := new(MockCalendarCache)
		svc := NewAvailabilityService(pr, sr, cache, 31)

		pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
		cache.On("Version", ctx, "product-1").Return(int64(1), nil)
		cache.On("Get", ctx, "product-1", int64(1), start, start).Return(nil, errors.New("timeout"))
		sr.On("ListRange", ctx, "product-1", start, start).Return([]*slot.Slot{}, nil)
		cache.On("Set", ctx, "product-1", int64(1), start, start, mock.Anything).Return(errors.New("timeout"))

		got, err := svc.GetCalendar(ctx, "product-1", start, start)
		require.NoError(t, err)
		assert.Equal(t, 12, got[0].TotalCapacity)
	})
}

func TestAvailabilityService_GetCalendar_InvalidRange(t *testing.T) {
	pr := new(MockProductRepository)
	sr := new(MockSlotRepository)
	svc := NewAvailabilityService(pr, sr, nil, 31)
	start := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.GetCalendar(context.Background(), "product-1", start, start.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, slot.ErrInvalidDateRange)

	_, err = svc.GetCalendar(context.Background(), "product-1", start, start.AddDate(0, 0, 31))
	assert.ErrorIs(t, err, slot.ErrInvalidDateRange)

	pr.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestAvailabilityService_InvalidateAvailability(t *testing.T) {
	ctx := context.Background()
	cache := new(MockCalendarCache)
	svc := NewAvailabilityService(nil, nil, cache, 0)

	cache.On("Invalidate", ctx, "product-1").Return(errors.New("connection refused")).Once()
	svc.InvalidateAvailability(ctx, "product-1")
	cache.AssertExpectations(t)

	// キャッシュなしでも panic しない
	NewAvailabilityService(nil, nil, nil, 0).InvalidateAvailability(ctx, "product-1")
}

// === ReservationService ===

func TestReservationService_Reserve_InsufficientCapacityRollsBack(t *testing.T) {
	ctx := context.Background()
	txm := new(MockTxManager)
	tx := new(MockTx)
	pr := new(MockProductRepository)
	sr := new(MockSlotRepository)
	hr := new(MockHoldRepository)
	inv := new(MockInvalidator)
	svc := NewReservationService(txm, pr, sr, hr, WithInvalidator(inv))

	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
	txm.On("Begin", ctx).Return(tx, nil)
	tx.On("Rollback").Return(nil)
	sr.On("Ensure", ctx, tx, "product-1", day, 12).Return(nil)
	sr.On("Increment", ctx, tx, "product-1", day, 5).Return(nil, slot.ErrInsufficientCapacity)

	_, err := svc.Reserve(ctx, ReserveInput{ProductID: "product-1", Date: day, Quantity: 5})
	assert.ErrorIs(t, err, slot.ErrInsufficientCapacity)

	tx.AssertCalled(t, "Rollback")
	tx.AssertNotCalled(t, "Commit")
	hr.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	inv.AssertNotCalled(t, "InvalidateAvailability", mock.Anything, mock.Anything)
}

func TestReservationService_Reserve_CommitFailed(t *testing.T) {
	ctx := context.Background()
	txm := new(MockTxManager)
	tx := new(MockTx)
	pr := new(MockProductRepository)
	sr := new(MockSlotRepository)
	hr := new(MockHoldRepository)
	svc := NewReservationService(txm, pr, sr, hr)

	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
	txm.On("Begin", ctx).Return(tx, nil)
	tx.On("Commit").Return(errors.New("commit failed"))
	tx.On("Rollback").Return(nil)
	sr.On("Ensure", ctx, tx, "product-1", day, 12).Return(nil)
	sr.On("Increment", ctx, tx, "product-1", day, 1).Return(&slot.Slot{ReservedCount: 1, TotalCapacity: 12}, nil)
	hr.On("Create", ctx, tx, mock.AnythingOfType("*hold.Hold")).Return(nil)

	_, err := svc.Reserve(ctx, ReserveInput{ProductID: "product-1", Date: day, Quantity: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "コミットに失敗")
}

func TestReservationService_Reserve_BeginFailed(t *testing.T) {
	ctx := context.Background()
	txm := new(MockTxManager)
	pr := new(MockProductRepository)
	svc := NewReservationService(txm, pr, new(MockSlotRepository), new(MockHoldRepository))

	pr.On("GetByID", ctx, "product-1").Return(testProduct(), nil)
	txm.On("Begin", ctx).Return(nil, errors.New("connection refused"))

	_, err := svc.Reserve(ctx, ReserveInput{ProductID: "product-1", Date: time.Now(), Quantity: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "トランザクション開始に失敗")
}

func TestReservationService_Release_DecrementFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	txm := new(MockTxManager)
	tx := new(MockTx)
	sr := new(MockSlotRepository)
	hr := new(MockHoldRepository)
	inv := new(MockInvalidator)
	svc := NewReservationService(txm, new(MockProductRepository), sr, hr, WithInvalidator(inv))

	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	h := &hold.Hold{ID: "hold-1", ProductID: "product-1", Date: day, Quantity: 2, Status: hold.StatusReleased}
	hr.On("GetByID", ctx, "hold-1").Return(&hold.Hold{ID: "hold-1", ProductID: "product-1", Date: day, Quantity: 2, Status: hold.StatusActive}, nil)
	txm.On("Begin", ctx).Return(tx, nil)
	tx.On("Rollback").Return(nil)
	hr.On("MarkReleased", ctx, tx, "hold-1", mock.AnythingOfType("time.Time")).Return(h, nil)
	sr.On("Decrement", ctx, tx, "product-1", day, 2).Return(nil, slot.ErrReservedCountConflict)

	released, err := svc.Release(ctx, "hold-1")
	assert.ErrorIs(t, err, slot.ErrReservedCountConflict)
	assert.False(t, released)
	tx.AssertNotCalled(t, "Commit")
	inv.AssertNotCalled(t, "InvalidateAvailability", mock.Anything, mock.Anything)
}

func TestReservationService_BookingOwnedHoldIsRejected(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	owned := &hold.Hold{ID: "hold-1", BookingID: "booking-1", ProductID: "product-1", Date: day, Quantity: 2, Status: hold.StatusActive}

	t.Run("解放", func(t *testing.T) {
		txm := new(MockTxManager)
		hr := new(MockHoldRepository)
		svc := NewReservationService(txm, new(MockProductRepository), new(MockSlotRepository), hr)
		hr.On("GetByID", ctx, "hold-1").Return(owned, nil)

		released, err := svc.Release(ctx, "hold-1")
		assert.ErrorIs(t, err, hold.ErrHoldOwnedByBooking)
		assert.False(t, released)
		txm.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("確定", func(t *testing.T) {
		txm := new(MockTxManager)
		hr := new(MockHoldRepository)
		svc := NewReservationService(txm, new(MockProductRepository), new(MockSlotRepository), hr)
		hr.On("GetByID", ctx, "hold-1").Return(owned, nil)

		_, err := svc.Confirm(ctx, "hold-1")
		assert.ErrorIs(t, err, hold.ErrHoldOwnedByBooking)
		txm.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("存在しない仮押さえの解放は何もしない", func(t *testing.T) {
		txm := new(MockTxManager)
		hr := new(MockHoldRepository)
		svc := NewReservationService(txm, new(MockProductRepository), new(MockSlotRepository), hr)
		hr.On("GetByID", ctx, "missing").Return(nil, hold.ErrHoldNotFound)

		released, err := svc.Release(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, released)
		txm.AssertNotCalled(t, "Begin", mock.Anything)
	})
}

func TestReservationService_ReserveTx_ValidatesHoldBeforeTouchingSlot(t *testing.T) {
	ctx := context.Background()
	tx := new(MockTx)
	sr := new(MockSlotRepository)
	hr := new(MockHoldRepository)
	svc := NewReservationService(new(MockTxManager), new(MockProductRepository), sr, hr)
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.ReserveTx(ctx, tx, ReserveInput{ProductID: "product-1", Date: day, Quantity: 0}, 12)
	assert.ErrorIs(t, err, hold.ErrInvalidQuantity)

	_, err = svc.ReserveTx(ctx, tx, ReserveInput{Date: day, Quantity: 1}, 12)
	assert.ErrorIs(t, err, hold.ErrProductIDRequired)

	sr.AssertNotCalled(t, "Ensure", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	hr.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/transaction"
)

// memStore はテスト用のインメモリストア
// トランザクションは txMu で直列化し、ロールバック時は開始時点のスナップショットに戻す
type memStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state memState
	// decrementErr が設定されていれば該当商品の Decrement を失敗させる
	decrementErr map[string]error
}

type slotKey struct {
	productID string
	date      time.Time
}

type memState struct {
	products map[string]product.Product
	slots    map[slotKey]slot.Slot
	holds    map[string]hold.Hold
	bookings map[string]booking.Booking
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		products: map[string]product.Product{},
		slots:    map[slotKey]slot.Slot{},
		holds:    map[string]hold.Hold{},
		bookings: map[string]booking.Booking{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		products: make(map[string]product.Product, len(s.products)),
		slots:    make(map[slotKey]slot.Slot, len(s.slots)),
		holds:    make(map[string]hold.Hold, len(s.holds)),
		bookings: make(map[string]booking.Booking, len(s.bookings)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.holds {
		c.holds[k] = v
	}
	for k, v := range s.bookings {
		v.Items = append([]booking.Item(nil), v.Items...)
		c.bookings[k] = v
	}
	return c
}

func (s *memStore) addProduct(name string, price, defaultCapacity int) *product.Product {
	p := product.NewProduct(name, "", "", price, defaultCapacity)
	p.ID = uuid.NewString()
	s.mu.Lock()
	s.state.products[p.ID] = *p
	s.mu.Unlock()
	return p
}

func (s *memStore) slot(productID string, date time.Time) (slot.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.state.slots[slotKey{productID, slot.NormalizeDate(date)}]
	return sl, ok
}

func (s *memStore) failDecrement(productID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decrementErr == nil {
		s.decrementErr = map[string]error{}
	}
	s.decrementErr[productID] = err
}

// forceBookingStatus はサービスを通さずに予約の状態を書き換える
func (s *memStore) forceBookingStatus(id string, status booking.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.state.bookings[id]
	b.Status = status
	s.state.bookings[id] = b
}

func (s *memStore) reservedCount(productID string, date time.Time) int {
	sl, _ := s.slot(productID, date)
	return sl.ReservedCount
}

// === transaction ===

type memTxManager struct{ s *memStore }

type memTx struct {
	s    *memStore
	snap memState
	done bool
}

func (m *memTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	m.s.txMu.Lock()
	m.s.mu.Lock()
	snap := m.s.state.clone()
	m.s.mu.Unlock()
	return &memTx{s: m.s, snap: snap}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Lock()
	t.s.state = t.snap
	t.s.mu.Unlock()
	t.s.txMu.Unlock()
	return nil
}

// === product ===

type memProductRepo struct{ s *memStore }

func (r *memProductRepo) Create(ctx context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = uuid.NewString()
	r.s.state.products[p.ID] = *p
	return nil
}

func (r *memProductRepo) GetByID(ctx context.Context, id string) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.state.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return &p, nil
}

func (r *memProductRepo) List(ctx context.Context, limit, offset int) ([]*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*product.Product, 0, len(r.s.state.products))
	for _, p := range r.s.state.products {
		p := p
		out = append(out, &p)
	}
	return out, nil
}

// === slot ===

type memSlotRepo struct{ s *memStore }

func (r *memSlotRepo) ensureLocked(productID string, date time.Time, defaultCapacity int) error {
	if _, ok := r.s.state.products[productID]; !ok {
		return product.ErrProductNotFound
	}
	k := slotKey{productID, slot.NormalizeDate(date)}
	if _, ok := r.s.state.slots[k]; !ok {
		r.s.state.slots[k] = *slot.NewSlot(productID, date, defaultCapacity)
	}
	return nil
}

func (r *memSlotRepo) GetOrCreate(ctx context.Context, productID string, date time.Time, defaultCapacity int) (*slot.Slot, error) {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.ensureLocked(productID, date, defaultCapacity); err != nil {
		return nil, err
	}
	sl := r.s.state.slots[slotKey{productID, slot.NormalizeDate(date)}]
	return &sl, nil
}

func (r *memSlotRepo) ListRange(ctx context.Context, productID string, start, end time.Time) ([]*slot.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*slot.Slot
	from, to := slot.NormalizeDate(start), slot.NormalizeDate(end)
	for k, v := range r.s.state.slots {
		if k.productID == productID && !k.date.Before(from) && !k.date.After(to) {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *memSlotRepo) SetCapacity(ctx context.Context, productID string, date time.Time, capacity int) (*slot.Slot, error) {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := slotKey{productID, slot.NormalizeDate(date)}
	sl, ok := r.s.state.slots[k]
	if !ok {
		sl = *slot.NewSlot(productID, date, capacity)
	}
	if err := sl.CanSetCapacity(capacity); err != nil {
		return nil, err
	}
	sl.TotalCapacity = capacity
	sl.Version++
	r.s.state.slots[k] = sl
	return &sl, nil
}

func (r *memSlotRepo) Ensure(ctx context.Context, tx transaction.Tx, productID string, date time.Time, defaultCapacity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.ensureLocked(productID, date, defaultCapacity)
}

func (r *memSlotRepo) Increment(ctx context.Context, tx transaction.Tx, productID string, date time.Time, quantity int) (*slot.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := slotKey{productID, slot.NormalizeDate(date)}
	sl, ok := r.s.state.slots[k]
	if !ok || sl.ReservedCount+quantity > sl.TotalCapacity {
		return nil, slot.ErrInsufficientCapacity
	}
	sl.ReservedCount += quantity
	sl.Version++
	r.s.state.slots[k] = sl
	return &sl, nil
}

func (r *memSlotRepo) Decrement(ctx context.Context, tx transaction.Tx, productID string, date time.Time, quantity int) (*slot.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.decrementErr[productID]; err != nil {
		return nil, err
	}
	k := slotKey{productID, slot.NormalizeDate(date)}
	sl, ok := r.s.state.slots[k]
	if !ok || sl.ReservedCount < quantity {
		return nil, slot.ErrReservedCountConflict
	}
	sl.ReservedCount -= quantity
	sl.Version++
	r.s.state.slots[k] = sl
	return &sl, nil
}

// === hold ===

type memHoldRepo struct{ s *memStore }

func (r *memHoldRepo) Create(ctx context.Context, tx transaction.Tx, h *hold.Hold) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.holds[h.ID] = *h
	return nil
}

func (r *memHoldRepo) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.state.holds[id]
	if !ok {
		return nil, hold.ErrHoldNotFound
	}
	return &h, nil
}

func (r *memHoldRepo) GetByIDTx(ctx context.Context, tx transaction.Tx, id string) (*hold.Hold, error) {
	return r.GetByID(ctx, id)
}

func (r *memHoldRepo) ListByBookingID(ctx context.Context, bookingID string) ([]*hold.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*hold.Hold
	for _, h := range r.s.state.holds {
		if h.BookingID == bookingID {
			h := h
			out = append(out, &h)
		}
	}
	return out, nil
}

func (r *memHoldRepo) transition(id string, to hold.Status, at time.Time, mustBeBefore bool) (*hold.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.state.holds[id]
	if !ok {
		return nil, hold.ErrHoldNotFound
	}
	if h.Status != hold.StatusActive || (mustBeBefore && !at.Before(h.ExpiresAt)) {
		return nil, hold.ErrHoldNotActive
	}
	h.Status = to
	if to == hold.StatusReleased {
		h.ReleasedAt = &at
	} else {
		h.ConfirmedAt = &at
	}
	r.s.state.holds[id] = h
	return &h, nil
}

func (r *memHoldRepo) MarkReleased(ctx context.Context, tx transaction.Tx, id string, at time.Time) (*hold.Hold, error) {
	return r.transition(id, hold.StatusReleased, at, false)
}

func (r *memHoldRepo) MarkConfirmed(ctx context.Context, tx transaction.Tx, id string, at time.Time) (*hold.Hold, error) {
	return r.transition(id, hold.StatusConfirmed, at, true)
}

func (r *memHoldRepo) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*hold.Hold
	for _, h := range r.s.state.holds {
		if h.Status == hold.StatusActive && !h.ExpiresAt.After(now) {
			h := h
			out = append(out, &h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// === booking ===

type memBookingRepo struct{ s *memStore }

func copyBooking(b booking.Booking) *booking.Booking {
	b.Items = append([]booking.Item(nil), b.Items...)
	return &b
}

func (r *memBookingRepo) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.state.bookings {
		if existing.IdempotencyKey == b.IdempotencyKey {
			return booking.ErrIdempotencyKeyAlreadyExists
		}
	}
	r.s.state.bookings[b.ID] = *copyBooking(*b)
	return nil
}

func (r *memBookingRepo) find(match func(b booking.Booking) bool) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.state.bookings {
		if match(b) {
			return copyBooking(b), nil
		}
	}
	return nil, booking.ErrBookingNotFound
}

func (r *memBookingRepo) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return r.find(func(b booking.Booking) bool { return b.ID == id })
}

func (r *memBookingRepo) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *memBookingRepo) GetByConfirmationCode(ctx context.Context, code string) (*booking.Booking, error) {
	return r.find(func(b booking.Booking) bool { return b.ConfirmationCode == code })
}

func (r *memBookingRepo) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	return r.find(func(b booking.Booking) bool { return b.IdempotencyKey == key })
}

func (r *memBookingRepo) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.s.state.bookings {
		if b.UserID == userID {
			out = append(out, copyBooking(b))
		}
	}
	return out, nil
}

func (r *memBookingRepo) Update(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.bookings[b.ID]; !ok {
		return booking.ErrBookingNotFound
	}
	r.s.state.bookings[b.ID] = *copyBooking(*b)
	return nil
}

// === event publisher ===

type recordingPublisher struct {
	mu     sync.Mutex
	events []booking.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev booking.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []booking.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]booking.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

var (
	_ transaction.Manager    = (*memTxManager)(nil)
	_ product.Repository     = (*memProductRepo)(nil)
	_ slot.Repository        = (*memSlotRepo)(nil)
	_ hold.Repository        = (*memHoldRepo)(nil)
	_ booking.Repository     = (*memBookingRepo)(nil)
	_ booking.EventPublisher = (*recordingPublisher)(nil)
)

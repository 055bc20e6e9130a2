package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/transaction"
)

const bookingColumns = `id, user_id, status, payment_status, total_price, confirmation_code, idempotency_key,
	cancel_reason, confirmed_at, cancelled_at, completed_at, created_at, updated_at`

type bookingRow struct {
	ID               string     `db:"id"`
	UserID           string     `db:"user_id"`
	Status           string     `db:"status"`
	PaymentStatus    string     `db:"payment_status"`
	TotalPrice       int        `db:"total_price"`
	ConfirmationCode string     `db:"confirmation_code"`
	IdempotencyKey   string     `db:"idempotency_key"`
	CancelReason     string     `db:"cancel_reason"`
	ConfirmedAt      *time.Time `db:"confirmed_at"`
	CancelledAt      *time.Time `db:"cancelled_at"`
	CompletedAt      *time.Time `db:"completed_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

type bookingItemRow struct {
	BookingID string         `db:"booking_id"`
	Position  int            `db:"position"`
	ProductID string         `db:"product_id"`
	SlotDate  time.Time      `db:"slot_date"`
	Quantity  int            `db:"quantity"`
	UnitPrice int            `db:"unit_price"`
	HoldID    sql.NullString `db:"hold_id"`
}

func (r *bookingRow) toEntity(items []booking.Item) *booking.Booking {
	return &booking.Booking{
		ID:               r.ID,
		UserID:           r.UserID,
		Items:            items,
		Status:           booking.Status(r.Status),
		PaymentStatus:    booking.PaymentStatus(r.PaymentStatus),
		TotalPrice:       r.TotalPrice,
		ConfirmationCode: r.ConfirmationCode,
		IdempotencyKey:   r.IdempotencyKey,
		CancelReason:     booking.CancelReason(r.CancelReason),
		ConfirmedAt:      r.ConfirmedAt,
		CancelledAt:      r.CancelledAt,
		CompletedAt:      r.CompletedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (r *bookingItemRow) toItem() booking.Item {
	return booking.Item{
		ProductID: r.ProductID,
		Date:      slot.NormalizeDate(r.SlotDate),
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		HoldID:    r.HoldID.String,
	}
}

// BookingRepository は予約リポジトリのPostgreSQL実装
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository はBookingRepositoryを作成する
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create は予約と明細を作成する
func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlTx, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO bookings (id, user_id, status, payment_status, total_price, confirmation_code,
		idempotency_key, cancel_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := sqlTx.ExecContext(ctx, query,
		b.ID, b.UserID, string(b.Status), string(b.PaymentStatus), b.TotalPrice, b.ConfirmationCode,
		b.IdempotencyKey, string(b.CancelReason), b.CreatedAt, b.UpdatedAt,
	); err != nil {
		if pqCode(err) == codeUniqueViolation && pqConstraint(err) == "bookings_idempotency_key_key" {
			return booking.ErrIdempotencyKeyAlreadyExists
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}

	for i, it := range b.Items {
		var holdID sql.NullString
		if it.HoldID != "" {
			holdID = sql.NullString{String: it.HoldID, Valid: true}
		}
		if _, err := sqlTx.ExecContext(ctx,
			`INSERT INTO booking_items (booking_id, position, product_id, slot_date, quantity, unit_price, hold_id)
			 VALUES ($1, $2, $3, $4::date, $5, $6, $7)`,
			b.ID, i, it.ProductID, slot.FormatDate(it.Date), it.Quantity, it.UnitPrice, holdID,
		); err != nil {
			return fmt.Errorf("予約明細作成に失敗: %w", err)
		}
	}
	return nil
}

// GetByID はIDから予約を取得する
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return r.getOne(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetByIDForUpdate は予約行をロックして取得する
// 同じ予約に対する状態遷移はこのロックで直列化される
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	sqlTx, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	return r.getOne(ctx, sqlTx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

// GetByConfirmationCode は確認コードから予約を取得する
func (r *BookingRepository) GetByConfirmationCode(ctx context.Context, code string) (*booking.Booking, error) {
	return r.getOne(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE confirmation_code = $1`, code)
}

// GetByIdempotencyKey は冪等性キーから予約を取得する
func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	return r.getOne(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = $1`, key)
}

// GetByUserID はユーザーの予約を作成日時の新しい順に取得する
func (r *BookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return []*booking.Booking{}, nil
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	itemsByBooking, err := r.getItemsByBookingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity(itemsByBooking[rows[i].ID])
	}
	return result, nil
}

// Update は予約の状態を更新する
func (r *BookingRepository) Update(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlTx, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE bookings
		SET status = $1, payment_status = $2, cancel_reason = $3,
		    confirmed_at = $4, cancelled_at = $5, completed_at = $6, updated_at = $7
		WHERE id = $8`
	result, err := sqlTx.ExecContext(ctx, query,
		string(b.Status), string(b.PaymentStatus), string(b.CancelReason),
		b.ConfirmedAt, b.CancelledAt, b.CompletedAt, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, arg string) (*booking.Booking, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, q, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	var itemRows []bookingItemRow
	if err := sqlx.SelectContext(ctx, q, &itemRows,
		`SELECT booking_id, position, product_id, slot_date, quantity, unit_price, hold_id
		 FROM booking_items WHERE booking_id = $1 ORDER BY position`, row.ID); err != nil {
		return nil, fmt.Errorf("予約明細取得に失敗: %w", err)
	}
	items := make([]booking.Item, len(itemRows))
	for i := range itemRows {
		items[i] = itemRows[i].toItem()
	}
	return row.toEntity(items), nil
}

func (r *BookingRepository) getItemsByBookingIDs(ctx context.Context, ids []string) (map[string][]booking.Item, error) {
	var itemRows []bookingItemRow
	if err := r.db.SelectContext(ctx, &itemRows,
		`SELECT booking_id, position, product_id, slot_date, quantity, unit_price, hold_id
		 FROM booking_items WHERE booking_id = ANY($1) ORDER BY booking_id, position`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("予約明細取得に失敗: %w", err)
	}
	out := make(map[string][]booking.Item, len(ids))
	for i := range itemRows {
		out[itemRows[i].BookingID] = append(out[itemRows[i].BookingID], itemRows[i].toItem())
	}
	return out, nil
}

var _ booking.Repository = (*BookingRepository)(nil)

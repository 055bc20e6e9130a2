package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/transaction"
)

const holdColumns = `id, booking_id, product_id, slot_date, quantity, status, expires_at, released_at, confirmed_at, created_at`

type holdRow struct {
	ID          string         `db:"id"`
	BookingID   sql.NullString `db:"booking_id"`
	ProductID   string         `db:"product_id"`
	SlotDate    time.Time      `db:"slot_date"`
	Quantity    int            `db:"quantity"`
	Status      string         `db:"status"`
	ExpiresAt   time.Time      `db:"expires_at"`
	ReleasedAt  *time.Time     `db:"released_at"`
	ConfirmedAt *time.Time     `db:"confirmed_at"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r *holdRow) toEntity() *hold.Hold {
	return &hold.Hold{
		ID:          r.ID,
		BookingID:   r.BookingID.String,
		ProductID:   r.ProductID,
		Date:        slot.NormalizeDate(r.SlotDate),
		Quantity:    r.Quantity,
		Status:      hold.Status(r.Status),
		ExpiresAt:   r.ExpiresAt.UTC(),
		ReleasedAt:  r.ReleasedAt,
		ConfirmedAt: r.ConfirmedAt,
		CreatedAt:   r.CreatedAt,
	}
}

// HoldRepository は仮押さえリポジトリのPostgreSQL実装
type HoldRepository struct {
	db *sqlx.DB
}

// NewHoldRepository はHoldRepositoryを作成する
func NewHoldRepository(db *sqlx.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

// Create は仮押さえを作成する
func (r *HoldRepository) Create(ctx context.Context, tx transaction.Tx, h *hold.Hold) error {
	sqlTx, err := mustTx(tx)
	if err != nil {
		return err
	}
	var bookingID sql.NullString
	if h.BookingID != "" {
		bookingID = sql.NullString{String: h.BookingID, Valid: true}
	}
	query := `INSERT INTO holds (id, booking_id, product_id, slot_date, quantity, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8)`
	if _, err := sqlTx.ExecContext(ctx, query,
		h.ID, bookingID, h.ProductID, slot.FormatDate(h.Date), h.Quantity, string(h.Status), h.ExpiresAt, h.CreatedAt,
	); err != nil {
		return fmt.Errorf("仮押さえ作成に失敗: %w", err)
	}
	return nil
}

// GetByID はIDから仮押さえを取得する
func (r *HoldRepository) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	return r.get(ctx, r.db, id)
}

// GetByIDTx はトランザクション内でIDから仮押さえを取得する
func (r *HoldRepository) GetByIDTx(ctx context.Context, tx transaction.Tx, id string) (*hold.Hold, error) {
	sqlTx, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	return r.get(ctx, sqlTx, id)
}

func (r *HoldRepository) get(ctx context.Context, q sqlx.QueryerContext, id string) (*hold.Hold, error) {
	var row holdRow
	query := `SELECT ` + holdColumns + ` FROM holds WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, hold.ErrHoldNotFound
		}
		return nil, fmt.Errorf("仮押さえ取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// ListByBookingID は予約に紐づく仮押さえを作成順に取得する
func (r *HoldRepository) ListByBookingID(ctx context.Context, bookingID string) ([]*hold.Hold, error) {
	var rows []holdRow
	query := `SELECT ` + holdColumns + ` FROM holds WHERE booking_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &rows, query, bookingID); err != nil {
		return nil, fmt.Errorf("仮押さえ一覧取得に失敗: %w", err)
	}
	return toHolds(rows), nil
}

// MarkReleased は有効な仮押さえだけを解放済みにする
// 既に解放済み・確定済みの場合は ErrHoldNotActive、存在しない場合は ErrHoldNotFound
func (r *HoldRepository) MarkReleased(ctx context.Context, tx transaction.Tx, id string, at time.Time) (*hold.Hold, error) {
	sqlTx, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	query := `UPDATE holds SET status = 'released', released_at = $2
		WHERE id = $1 AND status = 'active'
		RETURNING ` + holdColumns

	var row holdRow
	if err := sqlTx.GetContext(ctx, &row, query, id, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.notActiveOrNotFound(ctx, sqlTx, id)
		}
		if isInvalidUUID(err) {
			return nil, hold.ErrHoldNotFound
		}
		return nil, fmt.Errorf("仮押さえ解放に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// MarkConfirmed は期限内の有効な仮押さえだけを確定済みにする
func (r *HoldRepository) MarkConfirmed(ctx context.Context, tx transaction.Tx, id string, at time.Time) (*hold.Hold, error) {
	sqlTx, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	query := `UPDATE holds SET status = 'confirmed', confirmed_at = $2
		WHERE id = $1 AND status = 'active' AND expires_at > $2
		RETURNING ` + holdColumns

	var row holdRow
	if err := sqlTx.GetContext(ctx, &row, query, id, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.notActiveOrNotFound(ctx, sqlTx, id)
		}
		if isInvalidUUID(err) {
			return nil, hold.ErrHoldNotFound
		}
		return nil, fmt.Errorf("仮押さえ確定に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *HoldRepository) notActiveOrNotFound(ctx context.Context, tx *sqlx.Tx, id string) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM holds WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("仮押さえ取得に失敗: %w", err)
	}
	if !exists {
		return hold.ErrHoldNotFound
	}
	return hold.ErrHoldNotActive
}

// ListExpiredActive は now 時点で期限切れの有効な仮押さえを期限の古い順に取得する
func (r *HoldRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	var rows []holdRow
	query := `SELECT ` + holdColumns + ` FROM holds
		WHERE status = 'active' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("期限切れ仮押さえ取得に失敗: %w", err)
	}
	return toHolds(rows), nil
}

func toHolds(rows []holdRow) []*hold.Hold {
	holds := make([]*hold.Hold, len(rows))
	for i := range rows {
		holds[i] = rows[i].toEntity()
	}
	return holds
}

var _ hold.Repository = (*HoldRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/transaction"
)

const slotColumns = `product_id, slot_date, total_capacity, reserved_count, version, created_at, updated_at`

type slotRow struct {
	ProductID     string    `db:"product_id"`
	SlotDate      time.Time `db:"slot_date"`
	TotalCapacity int       `db:"total_capacity"`
	ReservedCount int       `db:"reserved_count"`
	Version       int       `db:"version"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *slotRow) toEntity() *slot.Slot {
	return &slot.Slot{
		ProductID:     r.ProductID,
		Date:          slot.NormalizeDate(r.SlotDate),
		TotalCapacity: r.TotalCapacity,
		ReservedCount: r.ReservedCount,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// SlotRepository は枠リポジトリのPostgreSQL実装
// 日付はセッションのタイムゾーンに左右されないよう YYYY-MM-DD 文字列で渡す
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository はSlotRepositoryを作成する
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

const ensureSlotQuery = `INSERT INTO slots (product_id, slot_date, total_capacity)
	VALUES ($1, $2::date, $3)
	ON CONFLICT (product_id, slot_date) DO NOTHING`

// GetOrCreate は枠を取得する。存在しなければ既定定員で作成する
func (r *SlotRepository) GetOrCreate(ctx context.Context, productID string, date time.Time, defaultCapacity int) (*slot.Slot, error) {
	if _, err := r.db.ExecContext(ctx, ensureSlotQuery, productID, slot.FormatDate(date), defaultCapacity); err != nil {
		if pqCode(err) == codeForeignKeyViolation || isInvalidUUID(err) {
			return nil, product.ErrProductNotFound
		}
		return nil, fmt.Errorf("枠作成に失敗: %w", err)
	}

	var row slotRow
	query := `SELECT ` + slotColumns + ` FROM slots WHERE product_id = $1 AND slot_date = $2::date`
	if err := r.db.GetContext(ctx, &row, query, productID, slot.FormatDate(date)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, slot.ErrSlotNotFound
		}
		return nil, fmt.Errorf("枠取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// ListRange は start〜end（両端含む）に存在する枠を日付順に取得する
func (r *SlotRepository) ListRange(ctx context.Context, productID string, start, end time.Time) ([]*slot.Slot, error) {
	var rows []slotRow
	query := `SELECT ` + slotColumns + ` FROM slots
		WHERE product_id = $1 AND slot_date BETWEEN $2::date AND $3::date
		ORDER BY slot_date`
	if err := r.db.SelectContext(ctx, &rows, query, productID, slot.FormatDate(start), slot.FormatDate(end)); err != nil {
		return nil, fmt.Errorf("枠一覧取得に失敗: %w", err)
	}
	slots := make([]*slot.Slot, len(rows))
	for i := range rows {
		slots[i] = rows[i].toEntity()
	}
	return slots, nil
}

// SetCapacity は定員を変更する
// 作成と更新を1文で行い、予約済み数を下回る定員への変更は行われない
func (r *SlotRepository) SetCapacity(ctx context.Context, productID string, date time.Time, capacity int) (*slot.Slot, error) {
	if capacity < 0 {
		return nil, slot.ErrInvalidCapacity
	}
	query := `INSERT INTO slots (product_id, slot_date, total_capacity)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (product_id, slot_date) DO UPDATE
			SET total_capacity = EXCLUDED.total_capacity,
			    version = slots.version + 1,
			    updated_at = NOW()
			WHERE slots.reserved_count <= EXCLUDED.total_capacity
		RETURNING ` + slotColumns

	var row slotRow
	if err := r.db.GetContext(ctx, &row, query, productID, slot.FormatDate(date), capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, slot.ErrInvalidCapacity
		}
		if pqCode(err) == codeForeignKeyViolation || isInvalidUUID(err) {
			return nil, product.ErrProductNotFound
		}
		if pqCode(err) == codeCheckViolation {
			return nil, slot.ErrInvalidCapacity
		}
		return nil, fmt.Errorf("定員変更に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// Ensure は枠が存在しなければ既定定員で作成する
func (r *SlotRepository) Ensure(ctx context.Context, tx transaction.Tx, productID string, date time.Time, defaultCapacity int) error {
	sqlTx, err := mustTx(tx)
	if err != nil {
		return err
	}
	if _, err := sqlTx.ExecContext(ctx, ensureSlotQuery, productID, slot.FormatDate(date), defaultCapacity); err != nil {
		if pqCode(err) == codeForeignKeyViolation || isInvalidUUID(err) {
			return product.ErrProductNotFound
		}
		return fmt.Errorf("枠作成に失敗: %w", err)
	}
	return nil
}

// Increment は残り定員の範囲内でのみ予約済み数を増やす
// 条件を満たさない場合は行が更新されず ErrInsufficientCapacity を返す
func (r *SlotRepository) Increment(ctx context.Context, tx transaction.Tx, productID string, date time.Time, quantity int) (*slot.Slot, error) {
	if quantity <= 0 {
		return nil, slot.ErrInvalidQuantity
	}
	sqlTx, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	query := `UPDATE slots
		SET reserved_count = reserved_count + $3, version = version + 1, updated_at = NOW()
		WHERE product_id = $1 AND slot_date = $2::date AND reserved_count + $3 <= total_capacity
		RETURNING ` + slotColumns

	var row slotRow
	if err := sqlTx.GetContext(ctx, &row, query, productID, slot.FormatDate(date), quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) || pqCode(err) == codeCheckViolation {
			return nil, slot.ErrInsufficientCapacity
		}
		return nil, fmt.Errorf("予約済み数の加算に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// Decrement は予約済み数を減らす。0未満になる場合は ErrReservedCountConflict
func (r *SlotRepository) Decrement(ctx context.Context, tx transaction.Tx, productID string, date time.Time, quantity int) (*slot.Slot, error) {
	if quantity <= 0 {
		return nil, slot.ErrInvalidQuantity
	}
	sqlTx, err := mustTx(tx)
	if err != nil {
		return nil, err
	}
	query := `UPDATE slots
		SET reserved_count = reserved_count - $3, version = version + 1, updated_at = NOW()
		WHERE product_id = $1 AND slot_date = $2::date AND reserved_count >= $3
		RETURNING ` + slotColumns

	var row slotRow
	if err := sqlTx.GetContext(ctx, &row, query, productID, slot.FormatDate(date), quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, slot.ErrReservedCountConflict
		}
		return nil, fmt.Errorf("予約済み数の減算に失敗: %w", err)
	}
	return row.toEntity(), nil
}

var _ slot.Repository = (*SlotRepository)(nil)

package slot

import (
	"context"
	"time"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/transaction"
)

// Repository は枠リポジトリのインターフェース
// 予約済み数を変更するのは Increment / Decrement のみ（いずれも条件付き UPDATE）
type Repository interface {
	// GetOrCreate は枠を取得する。存在しなければ既定定員で作成する
	GetOrCreate(ctx context.Context, productID string, date time.Time, defaultCapacity int) (*Slot, error)

	// ListRange は start〜end（両端含む）に存在する枠を日付順に取得する
	ListRange(ctx context.Context, productID string, start, end time.Time) ([]*Slot, error)

	// SetCapacity は定員を変更する（予約済み数を下回る場合は ErrInvalidCapacity）
	SetCapacity(ctx context.Context, productID string, date time.Time, capacity int) (*Slot, error)

	// Ensure は枠が存在しなければ既定定員で作成する（トランザクション必須）
	Ensure(ctx context.Context, tx transaction.Tx, productID string, date time.Time, defaultCapacity int) error

	// Increment は残り定員の範囲内で予約済み数を増やす（不足時は ErrInsufficientCapacity）
	Increment(ctx context.Context, tx transaction.Tx, productID string, date time.Time, quantity int) (*Slot, error)

	// Decrement は予約済み数を減らす（0未満になる場合は ErrReservedCountConflict）
	Decrement(ctx context.Context, tx transaction.Tx, productID string, date time.Time, quantity int) (*Slot, error)
}

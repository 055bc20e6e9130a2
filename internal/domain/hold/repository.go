package hold

import (
	"context"
	"time"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/transaction"
)

// Repository は仮押さえリポジトリのインターフェース
type Repository interface {
	// Create は仮押さえを作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, h *Hold) error

	// GetByID はIDから仮押さえを取得する
	GetByID(ctx context.Context, id string) (*Hold, error)

	// GetByIDTx はトランザクション内でIDから仮押さえを取得する
	GetByIDTx(ctx context.Context, tx transaction.Tx, id string) (*Hold, error)

	// ListByBookingID は予約に紐づく仮押さえ一覧を取得する
	ListByBookingID(ctx context.Context, bookingID string) ([]*Hold, error)

	// MarkReleased は有効な仮押さえを解放済みにする
	// 既に有効でない場合は ErrHoldNotActive（トランザクション必須）
	MarkReleased(ctx context.Context, tx transaction.Tx, id string, at time.Time) (*Hold, error)

	// MarkConfirmed は期限内の有効な仮押さえを確定済みにする
	// 期限切れ・解放済み・確定済みの場合は ErrHoldNotActive（トランザクション必須）
	MarkConfirmed(ctx context.Context, tx transaction.Tx, id string, at time.Time) (*Hold, error)

	// ListExpiredActive は now 時点で期限切れの有効な仮押さえを取得する
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*Hold, error)
}

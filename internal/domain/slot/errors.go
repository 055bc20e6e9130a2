package slot

import "errors"

// Slot ドメインのエラー定義
var (
	ErrSlotNotFound          = errors.New("枠が見つかりません")
	ErrInsufficientCapacity  = errors.New("残り定員が不足しています")
	ErrInvalidCapacity       = errors.New("定員は0以上かつ予約済み数以上である必要があります")
	ErrInvalidQuantity       = errors.New("人数は1以上である必要があります")
	ErrInvalidDate           = errors.New("日付はYYYY-MM-DD形式である必要があります")
	ErrInvalidDateRange      = errors.New("日付範囲が不正です")
	ErrProductIDRequired     = errors.New("商品IDは必須です")
	ErrReservedCountConflict = errors.New("予約済み数の整合性が取れません")
)

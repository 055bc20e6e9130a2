package hold

import "errors"

// Hold ドメインのエラー定義
var (
	ErrHoldNotFound       = errors.New("仮押さえが見つかりません")
	ErrHoldExpired        = errors.New("仮押さえの有効期限が切れています")
	ErrHoldNotActive      = errors.New("仮押さえは有効ではありません")
	ErrHoldOwnedByBooking = errors.New("予約に紐づく仮押さえは予約から操作してください")
	ErrInvalidQuantity    = errors.New("人数は1以上である必要があります")
	ErrProductIDRequired  = errors.New("商品IDは必須です")
)

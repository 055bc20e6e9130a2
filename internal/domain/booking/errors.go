package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound             = errors.New("予約が見つかりません")
	ErrBookingNotPending           = errors.New("予約は保留中ではありません")
	ErrBookingNotConfirmed         = errors.New("予約は確定されていません")
	ErrBookingAlreadyConfirmed     = errors.New("予約は既に確定されています")
	ErrBookingNotCancellable       = errors.New("確定済みまたは完了済みの予約はキャンセルできません")
	ErrInvalidPaymentTransition    = errors.New("支払い状態を変更できません")
	ErrInvalidPaymentStatus        = errors.New("支払い状態が不正です")
	ErrUserIDRequired              = errors.New("ユーザーIDは必須です")
	ErrItemsRequired               = errors.New("予約明細は必須です")
	ErrProductIDRequired           = errors.New("商品IDは必須です")
	ErrInvalidQuantity             = errors.New("人数は1以上である必要があります")
	ErrIdempotencyKeyRequired      = errors.New("冪等性キーは必須です")
	ErrIdempotencyKeyAlreadyExists = errors.New("同じ冪等性キーの予約が既に存在します")
)

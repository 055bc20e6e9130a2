package product

import "errors"

// Product ドメインのエラー定義
var (
	ErrProductNotFound        = errors.New("ツアー商品が見つかりません")
	ErrProductNameRequired    = errors.New("商品名は必須です")
	ErrInvalidPrice           = errors.New("価格は0以上である必要があります")
	ErrInvalidDefaultCapacity = errors.New("既定定員は0以上である必要があります")
)

package product

import "context"

// Repository はツアー商品リポジトリのインターフェース
type Repository interface {
	// Create は新しいツアー商品を作成する
	Create(ctx context.Context, p *Product) error

	// GetByID はIDからツアー商品を取得する
	GetByID(ctx context.Context, id string) (*Product, error)

	// List はツアー商品一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Product, error)
}

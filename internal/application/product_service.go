package application

import (
	"context"
	"fmt"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
)

type ProductService struct {
	productRepo     product.Repository
	defaultCapacity int
}

// NewProductService は ProductService を作成する
// defaultCapacity は既定定員を指定せずに作成された商品に適用される
func NewProductService(productRepo product.Repository, defaultCapacity int) *ProductService {
	return &ProductService{productRepo: productRepo, defaultCapacity: defaultCapacity}
}

type CreateProductInput struct {
	Name            string
	Description     string
	Location        string
	Price           int
	DefaultCapacity int
}

func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput) (*product.Product, error) {
	capacity := input.DefaultCapacity
	if capacity == 0 {
		capacity = s.defaultCapacity
	}
	p := product.NewProduct(input.Name, input.Description, input.Location, input.Price, capacity)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.productRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("ツアー商品作成に失敗しました: %w", err)
	}
	return p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return s.productRepo.GetByID(ctx, id)
}

func (s *ProductService) ListProducts(ctx context.Context, limit, offset int) ([]*product.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.productRepo.List(ctx, limit, offset)
}

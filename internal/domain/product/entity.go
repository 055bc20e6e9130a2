package product

import "time"

// Product はツアー商品エンティティを表す
type Product struct {
	ID              string
	Name            string
	Description     string
	Location        string
	Price           int // 1名あたりの単価
	DefaultCapacity int // 日ごとの既定定員（個別設定がない日に適用）
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewProduct は新しいツアー商品を作成する
func NewProduct(name, description, location string, price, defaultCapacity int) *Product {
	now := time.Now()
	return &Product{
		Name:            name,
		Description:     description,
		Location:        location,
		Price:           price,
		DefaultCapacity: defaultCapacity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate はツアー商品の検証を行う
func (p *Product) Validate() error {
	if p.Name == "" {
		return ErrProductNameRequired
	}
	if p.Price < 0 {
		return ErrInvalidPrice
	}
	if p.DefaultCapacity < 0 {
		return ErrInvalidDefaultCapacity
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
)

const productColumns = `id, name, description, location, price, default_capacity, created_at, updated_at`

type productRow struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	Description     string    `db:"description"`
	Location        string    `db:"location"`
	Price           int       `db:"price"`
	DefaultCapacity int       `db:"default_capacity"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *productRow) toEntity() *product.Product {
	return &product.Product{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Location:        r.Location,
		Price:           r.Price,
		DefaultCapacity: r.DefaultCapacity,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ProductRepository はツアー商品リポジトリのPostgreSQL実装
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository はProductRepositoryを作成する
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create はツアー商品を作成する
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	query := `INSERT INTO products (name, description, location, price, default_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Location, p.Price, p.DefaultCapacity, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("ツアー商品作成に失敗: %w", err)
	}
	return nil
}

// GetByID はIDからツアー商品を取得する
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var row productRow
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, product.ErrProductNotFound
		}
		if isInvalidUUID(err) {
			return nil, product.ErrProductNotFound
		}
		return nil, fmt.Errorf("ツアー商品取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// List はツアー商品一覧を作成日時の新しい順に取得する
func (r *ProductRepository) List(ctx context.Context, limit, offset int) ([]*product.Product, error) {
	var rows []productRow
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("ツアー商品一覧取得に失敗: %w", err)
	}
	products := make([]*product.Product, len(rows))
	for i := range rows {
		products[i] = rows[i].toEntity()
	}
	return products, nil
}

var _ product.Repository = (*ProductRepository)(nil)

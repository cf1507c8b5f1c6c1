package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"plgshop/internal/model"
)

// ProductRepository 商品仓库
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	List(ctx context.Context) ([]*model.Product, error)
}

type productRepository struct {
	db *sqlx.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *sqlx.DB) ProductRepository {
	return &productRepository{db: db}
}

// GetByID 根据ID获取商品
func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	p := &model.Product{}
	err := r.db.GetContext(ctx, p, `SELECT * FROM products WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List 获取上架商品
func (r *productRepository) List(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	if err := r.db.SelectContext(ctx, &products, `SELECT * FROM products WHERE active = 1 ORDER BY id`); err != nil {
		return nil, err
	}
	return products, nil
}

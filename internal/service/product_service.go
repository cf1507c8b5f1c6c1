package service

import (
	"context"
	"errors"
	"fmt"

	"plgshop/internal/constants"
	"plgshop/internal/model"
	"plgshop/internal/repository"
)

// ProductService 本地商品目录
type ProductService struct {
	products repository.ProductRepository
}

// NewProductService 创建商品服务
func NewProductService(products repository.ProductRepository) *ProductService {
	return &ProductService{products: products}
}

// List 上架商品
func (s *ProductService) List(ctx context.Context) ([]model.ProductView, error) {
	rows, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	views := make([]model.ProductView, 0, len(rows))
	for _, p := range rows {
		views = append(views, p.View())
	}
	return views, nil
}

// Get 单个商品
func (s *ProductService) Get(ctx context.Context, id int64) (*model.ProductView, error) {
	if id <= 0 {
		return nil, NewValidationError(constants.ErrProductIDInvalid)
	}
	p, err := s.products.GetByID(ctx, id)
	if err == nil && !p.Active {
		err = repository.ErrNotFound
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, statusError(ErrNotFound, constants.ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	view := p.View()
	return &view, nil
}

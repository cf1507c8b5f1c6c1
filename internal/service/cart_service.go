package service

import (
	"context"
	"errors"
	"fmt"

	"plgshop/internal/constants"
	"plgshop/internal/model"
	"plgshop/internal/repository"
)

// CartService 购物车
type CartService struct {
	carts repository.CartRepository
}

// NewCartService 创建购物车服务
func NewCartService(carts repository.CartRepository) *CartService {
	return &CartService{carts: carts}
}

// SetItem 设置商品数量并返回最新购物车
func (s *CartService) SetItem(ctx context.Context, userID, productID int64, quantity int) ([]model.CartItemView, error) {
	if productID <= 0 || quantity <= 0 {
		return nil, NewValidationError(constants.ErrCartItemInvalid)
	}
	err := s.carts.SetItem(ctx, userID, productID, quantity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, statusError(ErrNotFound, constants.ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("set cart item: %w", err)
	}
	return s.Items(ctx, userID)
}

// Items 购物车明细
func (s *CartService) Items(ctx context.Context, userID int64) ([]model.CartItemView, error) {
	items, err := s.carts.ListItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	views := make([]model.CartItemView, 0, len(items))
	for _, item := range items {
		views = append(views, item.View())
	}
	return views, nil
}

// Count 购物车商品种类数
func (s *CartService) Count(ctx context.Context, userID int64) (int, error) {
	return s.carts.CountItems(ctx, userID)
}

// RemoveItem 删除商品并返回最新购物车
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) ([]model.CartItemView, error) {
	err := s.carts.RemoveItem(ctx, userID, productID)
	switch {
	case errors.Is(err, repository.ErrCartEmpty):
		return nil, statusError(ErrNotFound, constants.ErrCartEmpty)
	case errors.Is(err, repository.ErrNotFound):
		return nil, statusError(ErrNotFound, constants.ErrCartItemNotFound)
	case err != nil:
		return nil, fmt.Errorf("remove cart item: %w", err)
	}
	return s.Items(ctx, userID)
}

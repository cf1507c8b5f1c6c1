package service

import (
	"context"
	"fmt"

	"plgshop/internal/constants"
	"plgshop/internal/model"
	"plgshop/internal/repository"
	"plgshop/pkg/shopify"
)

const (
	defaultOrderLimit = 10
	maxOrderLimit     = 50
)

// DirectOrderRequest 不经过金流直接建立的订单
type DirectOrderRequest struct {
	Items    []model.OrderItem `json:"items"`
	Shipping *model.Shipping   `json:"shipping"`
}

// OrderService 用户订单
type OrderService struct {
	platform    OrderPlatform
	orders      repository.ShopifyOrderRepository
	fulfillment *FulfillmentService
}

// NewOrderService 创建订单服务
func NewOrderService(platform OrderPlatform, orders repository.ShopifyOrderRepository, fulfillment *FulfillmentService) *OrderService {
	return &OrderService{platform: platform, orders: orders, fulfillment: fulfillment}
}

// ClampLimit 限制分页数量在1到50之间
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultOrderLimit
	}
	if limit > maxOrderLimit {
		return maxOrderLimit
	}
	return limit
}

// List 用户最近的订单
func (s *OrderService) List(ctx context.Context, userID int64, limit int) ([]model.OrderView, error) {
	rows, err := s.orders.ListByUser(ctx, userID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	views := make([]model.OrderView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.View())
	}
	return views, nil
}

// ValidateShipping 检查配送信息是否完整
func ValidateShipping(shipping *model.Shipping) error {
	if shipping == nil || shipping.Method == "" {
		return NewValidationError(constants.ErrShippingMissing)
	}
	if shipping.Method == model.ShippingHome {
		a := shipping.Address
		if a == nil || a.City == "" || a.District == "" || a.Detail == "" {
			return NewValidationError(constants.ErrAddressIncomplete)
		}
		return nil
	}
	if shipping.Store == nil || shipping.Store.ID == "" {
		return NewValidationError(constants.ErrStoreNotSelected)
	}
	return nil
}

// Create 建立待付款的Shopify订单
func (s *OrderService) Create(ctx context.Context, userID int64, req DirectOrderRequest) (*shopify.Order, error) {
	if len(req.Items) == 0 {
		return nil, NewValidationError(constants.ErrItemsMissing)
	}
	if err := ValidateShipping(req.Shipping); err != nil {
		return nil, err
	}
	shipping := *req.Shipping

	address, attrs := BuildShipping(shipping, "便利商店")
	note := "宅配訂單"
	if shipping.IsPickup() {
		note = "超商取貨"
	}

	order, err := s.platform.CreateOrder(ctx, shopify.OrderInput{
		LineItems:         BuildLineItems(req.Items),
		FinancialStatus:   "pending",
		FulfillmentStatus: "unfulfilled",
		Tags:              MethodTag(shipping.Method),
		ShippingAddress:   address,
		Note:              note,
		NoteAttributes:    attrs,
	})
	if err != nil {
		return nil, downstream("shopify", err)
	}

	if err := s.fulfillment.RecordOrder(ctx, order, userID, "", &shipping); err != nil {
		return nil, err
	}
	return order, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"plgshop/internal/model"
	"plgshop/internal/repository"
	"plgshop/pkg/logger"
	"plgshop/pkg/shopify"
)

// TopicOrderDelete 订单删除事件
const TopicOrderDelete = "orders/delete"

// ErrWebhookSignature Webhook签名不符
var ErrWebhookSignature = errors.New("invalid webhook signature")

// WebhookService Shopify订单Webhook
type WebhookService struct {
	secret string
	orders repository.ShopifyOrderRepository
	logger *logger.Logger
}

// NewWebhookService 创建Webhook服务
func NewWebhookService(secret string, orders repository.ShopifyOrderRepository, log *logger.Logger) *WebhookService {
	return &WebhookService{secret: secret, orders: orders, logger: log}
}

// Handle 验签后同步订单镜像
func (s *WebhookService) Handle(ctx context.Context, topic string, body []byte, signature string) error {
	if !shopify.VerifyWebhook(s.secret, body, signature) {
		return ErrWebhookSignature
	}

	var payload shopify.Order
	if err := json.Unmarshal(body, &payload); err != nil {
		return NewValidationError("invalid webhook payload")
	}
	if payload.ID == 0 {
		return NewValidationError("Missing order id")
	}

	if topic == TopicOrderDelete {
		if err := s.orders.Delete(ctx, payload.ID); err != nil {
			return fmt.Errorf("delete order %d: %w", payload.ID, err)
		}
		s.logger.Info("Shopify订单已删除", "shopify_order_id", payload.ID)
		return nil
	}

	found, err := s.orders.UpdateFromWebhook(ctx, &model.ShopifyOrder{
		ShopifyOrderID:     payload.ID,
		ShopifyOrderName:   nullString(payload.Name),
		ShopifyOrderNumber: nullInt64(payload.OrderNumber),
		Currency:           nullString(payload.Currency),
		SubtotalPrice:      nullString(payload.SubtotalPrice),
		TotalPrice:         nullString(payload.TotalPrice),
		FinancialStatus:    nullString(payload.FinancialStatus),
		FulfillmentStatus:  nullString(payload.FulfillmentStatus),
		LineItems:          SnapshotLineItems(payload.LineItems),
	})
	if err != nil {
		return fmt.Errorf("update order %d: %w", payload.ID, err)
	}
	if !found {
		s.logger.Debug("Webhook订单不在本地", "topic", topic, "shopify_order_id", payload.ID)
	}
	return nil
}

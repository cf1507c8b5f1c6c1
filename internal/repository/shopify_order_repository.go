package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"plgshop/internal/model"
)

// ShopifyOrderRepository Shopify订单镜像仓库
type ShopifyOrderRepository interface {
	Upsert(ctx context.Context, order *model.ShopifyOrder) error
	UpdateFromWebhook(ctx context.Context, order *model.ShopifyOrder) (bool, error)
	Delete(ctx context.Context, shopifyOrderID int64) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.ShopifyOrder, error)
}

type shopifyOrderRepository struct {
	db *sqlx.DB
}

// NewShopifyOrderRepository 创建订单镜像仓库
func NewShopifyOrderRepository(db *sqlx.DB) ShopifyOrderRepository {
	return &shopifyOrderRepository{db: db}
}

// Upsert 以shopify_order_id为键写入订单
func (r *shopifyOrderRepository) Upsert(ctx context.Context, o *model.ShopifyOrder) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shopify_orders (
		   user_id, shopify_order_id, shopify_order_name, shopify_order_number, currency,
		   subtotal_price, total_price, financial_status, fulfillment_status,
		   shipping_method, merchant_trade_no, line_items
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   user_id = VALUES(user_id),
		   shopify_order_name = VALUES(shopify_order_name),
		   shopify_order_number = VALUES(shopify_order_number),
		   currency = VALUES(currency),
		   subtotal_price = VALUES(subtotal_price),
		   total_price = VALUES(total_price),
		   financial_status = VALUES(financial_status),
		   fulfillment_status = VALUES(fulfillment_status),
		   shipping_method = VALUES(shipping_method),
		   merchant_trade_no = VALUES(merchant_trade_no),
		   line_items = VALUES(line_items),
		   updated_at = CURRENT_TIMESTAMP`,
		o.UserID, o.ShopifyOrderID, o.ShopifyOrderName, o.ShopifyOrderNumber, o.Currency,
		o.SubtotalPrice, o.TotalPrice, o.FinancialStatus, o.FulfillmentStatus,
		o.ShippingMethod, o.MerchantTradeNo, o.LineItems)
	return err
}

// UpdateFromWebhook 按Webhook内容更新状态与金额，不改动用户与交易编号
func (r *shopifyOrderRepository) UpdateFromWebhook(ctx context.Context, o *model.ShopifyOrder) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shopify_orders
		    SET shopify_order_name = COALESCE(?, shopify_order_name),
		        shopify_order_number = COALESCE(?, shopify_order_number),
		        currency = COALESCE(?, currency),
		        subtotal_price = COALESCE(?, subtotal_price),
		        total_price = COALESCE(?, total_price),
		        financial_status = ?,
		        fulfillment_status = ?,
		        line_items = ?,
		        updated_at = CURRENT_TIMESTAMP
		  WHERE shopify_order_id = ?`,
		o.ShopifyOrderName, o.ShopifyOrderNumber, o.Currency, o.SubtotalPrice, o.TotalPrice,
		o.FinancialStatus, o.FulfillmentStatus, o.LineItems, o.ShopifyOrderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete 删除订单镜像
func (r *shopifyOrderRepository) Delete(ctx context.Context, shopifyOrderID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM shopify_orders WHERE shopify_order_id = ?`, shopifyOrderID)
	return err
}

// ListByUser 用户最近的订单
func (r *shopifyOrderRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.ShopifyOrder, error) {
	orders := []*model.ShopifyOrder{}
	err := r.db.SelectContext(ctx, &orders,
		`SELECT * FROM shopify_orders WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

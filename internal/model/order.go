package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// LineItemSnapshot 订单商品快照
type LineItemSnapshot struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	SKU      string `json:"sku"`
}

// LineItems 以JSON保存的商品快照
type LineItems []LineItemSnapshot

// Value 实现 driver.Valuer
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		l = LineItems{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (l *LineItems) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = LineItems{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported line_items type")
	}
}

// ShopifyOrder Shopify订单镜像
type ShopifyOrder struct {
	ID                 int64          `db:"id" json:"-"`
	UserID             sql.NullInt64  `db:"user_id" json:"-"`
	ShopifyOrderID     int64          `db:"shopify_order_id" json:"id"`
	ShopifyOrderName   sql.NullString `db:"shopify_order_name" json:"-"`
	ShopifyOrderNumber sql.NullInt64  `db:"shopify_order_number" json:"-"`
	Currency           sql.NullString `db:"currency" json:"-"`
	SubtotalPrice      sql.NullString `db:"subtotal_price" json:"-"`
	TotalPrice         sql.NullString `db:"total_price" json:"-"`
	FinancialStatus    sql.NullString `db:"financial_status" json:"-"`
	FulfillmentStatus  sql.NullString `db:"fulfillment_status" json:"-"`
	ShippingMethod     sql.NullString `db:"shipping_method" json:"-"`
	MerchantTradeNo    sql.NullString `db:"merchant_trade_no" json:"-"`
	LineItems          LineItems      `db:"line_items" json:"lineItems"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time      `db:"updated_at" json:"-"`
}

// OrderView 用户订单列表格式
type OrderView struct {
	ID                int64     `json:"id"`
	Name              *string   `json:"name"`
	Number            *int64    `json:"number"`
	Currency          *string   `json:"currency"`
	SubtotalPrice     *string   `json:"subtotalPrice"`
	TotalPrice        *string   `json:"totalPrice"`
	FinancialStatus   *string   `json:"financialStatus"`
	FulfillmentStatus *string   `json:"fulfillmentStatus"`
	ShippingMethod    *string   `json:"shippingMethod"`
	LineItems         LineItems `json:"lineItems"`
	CreatedAt         time.Time `json:"createdAt"`
}

// View 转换为前端格式
func (o *ShopifyOrder) View() OrderView {
	v := OrderView{
		ID:                o.ShopifyOrderID,
		Name:              nullable(o.ShopifyOrderName),
		Currency:          nullable(o.Currency),
		SubtotalPrice:     nullable(o.SubtotalPrice),
		TotalPrice:        nullable(o.TotalPrice),
		FinancialStatus:   nullable(o.FinancialStatus),
		FulfillmentStatus: nullable(o.FulfillmentStatus),
		ShippingMethod:    nullable(o.ShippingMethod),
		LineItems:         o.LineItems,
		CreatedAt:         o.CreatedAt,
	}
	if v.LineItems == nil {
		v.LineItems = LineItems{}
	}
	if o.ShopifyOrderNumber.Valid {
		n := o.ShopifyOrderNumber.Int64
		v.Number = &n
	}
	return v
}

// StoreSelection 门市选择结果，保存在Redis
type StoreSelection struct {
	Token            string    `json:"token"`
	StoreID          string    `json:"storeId"`
	StoreName        string    `json:"storeName"`
	StoreAddress     string    `json:"storeAddress"`
	StorePhone       string    `json:"storePhone,omitempty"`
	LogisticsSubType string    `json:"logisticsSubType"`
	TempLogisticsID  string    `json:"tempLogisticsId,omitempty"`
	Raw              any       `json:"raw,omitempty"`
	SavedAt          time.Time `json:"savedAt"`
}

package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ShippingHome 宅配方式，其余方式为超商取货
const ShippingHome = "home"

// OrderItem 结账商品
type OrderItem struct {
	ProductID  json.Number `json:"productId"`
	Name       string      `json:"name,omitempty"`
	Quantity   int         `json:"quantity"`
	PriceCents int64       `json:"priceCents"`
}

// Address 宅配地址
type Address struct {
	Receiver string `json:"receiver,omitempty"`
	Phone    string `json:"phone,omitempty"`
	City     string `json:"city,omitempty"`
	District string `json:"district,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Postal   string `json:"postal,omitempty"`
}

// Store 取货门市
type Store struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name,omitempty"`
	Address          string `json:"address,omitempty"`
	Phone            string `json:"phone,omitempty"`
	LogisticsSubType string `json:"logisticsSubType,omitempty"`
}

// Shipping 配送信息
type Shipping struct {
	Method  string   `json:"method"`
	Address *Address `json:"address,omitempty"`
	Store   *Store   `json:"store,omitempty"`
}

// IsPickup 是否为超商取货
func (s Shipping) IsPickup() bool {
	return s.Method != "" && s.Method != ShippingHome
}

// OrderPayload 待付款订单内容，以JSON保存
type OrderPayload struct {
	Items    []OrderItem `json:"items"`
	Shipping Shipping    `json:"shipping"`
}

// Value 实现 driver.Valuer
func (p OrderPayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (p *OrderPayload) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = OrderPayload{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return errors.New("unsupported order_payload type")
	}
}

// Transaction 绿界待付款交易
type Transaction struct {
	ID                 int64          `db:"id" json:"id"`
	MerchantTradeNo    string         `db:"merchant_trade_no" json:"merchantTradeNo"`
	UserID             int64          `db:"user_id" json:"userId"`
	TotalAmount        int64          `db:"total_amount" json:"totalAmount"`
	OrderPayload       OrderPayload   `db:"order_payload" json:"orderPayload"`
	ProcessedAt        sql.NullTime   `db:"processed_at" json:"-"`
	ClaimToken         sql.NullString `db:"claim_token" json:"-"`
	ClaimedAt          sql.NullTime   `db:"claimed_at" json:"-"`
	ClaimAttempts      int            `db:"claim_attempts" json:"claimAttempts"`
	GatewayTradeNo     sql.NullString `db:"gateway_trade_no" json:"-"`
	PaymentDate        sql.NullString `db:"payment_date" json:"-"`
	PaymentType        sql.NullString `db:"payment_type" json:"-"`
	ShopifyOrderID     sql.NullInt64  `db:"shopify_order_id" json:"-"`
	ShopifyOrderName   sql.NullString `db:"shopify_order_name" json:"-"`
	ShopifyOrderNumber sql.NullInt64  `db:"shopify_order_number" json:"-"`
	AllPayLogisticsID  sql.NullString `db:"allpay_logistics_id" json:"-"`
	LogisticsSubType   sql.NullString `db:"logistics_subtype" json:"-"`
	CVSPaymentNo       sql.NullString `db:"cvs_payment_no" json:"-"`
	CVSValidationNo    sql.NullString `db:"cvs_validation_no" json:"-"`
	LogisticsStatus    sql.NullString `db:"logistics_status" json:"-"`
	LogisticsStatusMsg sql.NullString `db:"logistics_status_msg" json:"-"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updatedAt"`
}

// Processed 是否已完成对账
func (t *Transaction) Processed() bool {
	return t.ProcessedAt.Valid
}

// PaymentInfo 已验证的付款回调数据
type PaymentInfo struct {
	GatewayTradeNo string
	PaymentDate    string
	PaymentType    string
}

// OrderRef 下游订单引用
type OrderRef struct {
	ID     int64
	Name   string
	Number int64
}

// LogisticsShipment 超商物流单
type LogisticsShipment struct {
	AllPayLogisticsID string `json:"allPayLogisticsId"`
	LogisticsSubType  string `json:"logisticsSubType"`
	CVSPaymentNo      string `json:"cvsPaymentNo,omitempty"`
	CVSValidationNo   string `json:"cvsValidationNo,omitempty"`
}

// TransactionView 管理端展示
type TransactionView struct {
	MerchantTradeNo    string             `json:"merchantTradeNo"`
	UserID             int64              `json:"userId"`
	TotalAmount        int64              `json:"totalAmount"`
	ProcessedAt        *time.Time         `json:"processedAt"`
	ClaimAttempts      int                `json:"claimAttempts"`
	ShopifyOrderID     *int64             `json:"shopifyOrderId"`
	ShopifyOrderName   *string            `json:"shopifyOrderName"`
	Shipment           *LogisticsShipment `json:"shipment"`
	LogisticsStatus    *string            `json:"logisticsStatus"`
	LogisticsStatusMsg *string            `json:"logisticsStatusMsg"`
	Shipping           Shipping           `json:"shipping"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// View 转换为展示格式
func (t *Transaction) View() TransactionView {
	v := TransactionView{
		MerchantTradeNo:    t.MerchantTradeNo,
		UserID:             t.UserID,
		TotalAmount:        t.TotalAmount,
		ClaimAttempts:      t.ClaimAttempts,
		ShopifyOrderName:   nullable(t.ShopifyOrderName),
		LogisticsStatus:    nullable(t.LogisticsStatus),
		LogisticsStatusMsg: nullable(t.LogisticsStatusMsg),
		Shipping:           t.OrderPayload.Shipping,
		CreatedAt:          t.CreatedAt,
	}
	if t.ProcessedAt.Valid {
		at := t.ProcessedAt.Time
		v.ProcessedAt = &at
	}
	if t.ShopifyOrderID.Valid {
		id := t.ShopifyOrderID.Int64
		v.ShopifyOrderID = &id
	}
	if t.AllPayLogisticsID.Valid {
		v.Shipment = &LogisticsShipment{
			AllPayLogisticsID: t.AllPayLogisticsID.String,
			LogisticsSubType:  t.LogisticsSubType.String,
			CVSPaymentNo:      t.CVSPaymentNo.String,
			CVSValidationNo:   t.CVSValidationNo.String,
		}
	}
	return v
}

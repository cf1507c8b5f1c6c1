package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"plgshop/internal/metrics"
	"plgshop/internal/model"
	"plgshop/internal/repository"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/logger"
	"plgshop/pkg/shopify"
)

// 订单标签
const (
	TagHomeDelivery = "plg-home-delivery"
	tagCVSPrefix    = "plg-cvs-"
	tagTradePrefix  = "plg-trade-"
)

const (
	defaultGoodsName     = "PLG 商品"
	defaultReceiverName  = "CVS Receiver"
	defaultReceiverPhone = "0911222333"
)

var logisticsSubTypes = map[string]string{
	"seveneleven": "UNIMARTC2C",
	"familymart":  "FAMIC2C",
}

// OrderPlatform 下游订单平台
type OrderPlatform interface {
	CreateOrder(ctx context.Context, input shopify.OrderInput) (*shopify.Order, error)
	FindOrderByTag(ctx context.Context, tag string) (*shopify.Order, error)
}

// ShipmentGateway 物流建单接口
type ShipmentGateway interface {
	CreateShipment(ctx context.Context, req ecpay.ShipmentRequest) (ecpay.Response, error)
}

// Sender 寄件人信息
type Sender struct {
	Name  string
	Phone string
}

// FulfillmentService 建立Shopify订单与超商物流单
type FulfillmentService struct {
	platform     OrderPlatform
	shipments    ShipmentGateway
	orders       repository.ShopifyOrderRepository
	transactions repository.TransactionRepository
	sender       Sender
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

// NewFulfillmentService 创建履约服务
func NewFulfillmentService(
	platform OrderPlatform,
	shipments ShipmentGateway,
	orders repository.ShopifyOrderRepository,
	transactions repository.TransactionRepository,
	sender Sender,
	m *metrics.Metrics,
	log *logger.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		platform:     platform,
		shipments:    shipments,
		orders:       orders,
		transactions: transactions,
		sender:       sender,
		metrics:      m,
		logger:       log,
	}
}

// TradeTag 关联交易编号的订单标签
func TradeTag(tradeNo string) string {
	return tagTradePrefix + tradeNo
}

// MethodTag 配送方式标签
func MethodTag(method string) string {
	if method == model.ShippingHome {
		return TagHomeDelivery
	}
	return tagCVSPrefix + method
}

// BuildLineItems 转换结账商品
func BuildLineItems(items []model.OrderItem) []shopify.LineItemInput {
	lines := make([]shopify.LineItemInput, 0, len(items))
	for _, item := range items {
		title := item.Name
		if title == "" {
			title = fmt.Sprintf("%s #%s", defaultGoodsName, item.ProductID)
		}
		lines = append(lines, shopify.LineItemInput{
			Title:    title,
			Quantity: item.Quantity,
			Price:    model.FormatMinorUnits(item.PriceCents),
			SKU:      item.ProductID.String(),
		})
	}
	return lines
}

// BuildShipping 收件地址与门市属性
func BuildShipping(shipping model.Shipping, cvsCity string) (*shopify.Address, []shopify.NoteAttribute) {
	if !shipping.IsPickup() {
		addr := model.Address{}
		if shipping.Address != nil {
			addr = *shipping.Address
		}
		receiver := addr.Receiver
		if receiver == "" {
			receiver = "PLG"
		}
		return &shopify.Address{
			FirstName: receiver,
			Address1:  addr.Detail,
			Phone:     addr.Phone,
			City:      addr.City,
			Province:  addr.District,
			Zip:       addr.Postal,
			Country:   "TW",
		}, []shopify.NoteAttribute{}
	}

	store := model.Store{}
	if shipping.Store != nil {
		store = *shipping.Store
	}
	name := store.Name
	if name == "" {
		name = "CVS"
	}
	return &shopify.Address{
			FirstName: name,
			LastName:  store.ID,
			Address1:  store.Address,
			Phone:     store.Phone,
			City:      cvsCity,
			Province:  store.LogisticsSubType,
			Country:   "TW",
		}, []shopify.NoteAttribute{
			{Name: "storeId", Value: store.ID},
			{Name: "storeName", Value: store.Name},
			{Name: "storeAddress", Value: store.Address},
			{Name: "logisticsSubType", Value: store.LogisticsSubType},
		}
}

// BuildPaidOrder 由待付款交易生成已付款的Shopify订单
func BuildPaidOrder(tx *model.Transaction) shopify.OrderInput {
	payload := tx.OrderPayload
	address, attrs := BuildShipping(payload.Shipping, "台灣")

	note := "宅配"
	if payload.Shipping.IsPickup() {
		note = "超商取貨付款"
	}

	return shopify.OrderInput{
		LineItems:         BuildLineItems(payload.Items),
		FinancialStatus:   "paid",
		FulfillmentStatus: "unfulfilled",
		Tags:              MethodTag(payload.Shipping.Method) + ", " + TradeTag(tx.MerchantTradeNo),
		ShippingAddress:   address,
		Note:              note,
		NoteAttributes:    attrs,
		Transactions: []shopify.TransactionInput{{
			Kind:          "sale",
			Status:        "success",
			Amount:        decimal.NewFromInt(tx.TotalAmount).StringFixed(2),
			Gateway:       "ECPay",
			Authorization: tx.MerchantTradeNo,
		}},
	}
}

// CreateOrAdoptOrder 建立下游订单；adopt为true时先按交易标签查找已有订单
func (s *FulfillmentService) CreateOrAdoptOrder(ctx context.Context, tx *model.Transaction, adopt bool) (*shopify.Order, bool, error) {
	if adopt {
		existing, err := s.platform.FindOrderByTag(ctx, TradeTag(tx.MerchantTradeNo))
		if err != nil {
			s.metrics.DownstreamOrder("lookup_error")
			return nil, false, downstream("shopify", fmt.Errorf("lookup by tag: %w", err))
		}
		if existing != nil {
			s.logger.Info("沿用已存在的Shopify订单", "trade_no", tx.MerchantTradeNo, "shopify_order_id", existing.ID)
			s.metrics.DownstreamOrder("adopted")
			return existing, true, nil
		}
	}

	order, err := s.platform.CreateOrder(ctx, BuildPaidOrder(tx))
	if err != nil {
		s.metrics.DownstreamOrder("error")
		return nil, false, downstream("shopify", err)
	}
	s.metrics.DownstreamOrder("created")
	return order, false, nil
}

// RecordOrder 写入订单镜像
func (s *FulfillmentService) RecordOrder(ctx context.Context, order *shopify.Order, userID int64, tradeNo string, shipping *model.Shipping) error {
	record := &model.ShopifyOrder{
		UserID:             nullInt64(userID),
		ShopifyOrderID:     order.ID,
		ShopifyOrderName:   nullString(order.Name),
		ShopifyOrderNumber: nullInt64(order.OrderNumber),
		Currency:           nullString(order.Currency),
		SubtotalPrice:      nullString(order.SubtotalPrice),
		TotalPrice:         nullString(order.TotalPrice),
		FinancialStatus:    nullString(order.FinancialStatus),
		FulfillmentStatus:  nullString(order.FulfillmentStatus),
		ShippingMethod:     nullString(ResolveShippingMethod(order.Tags, shipping)),
		MerchantTradeNo:    nullString(tradeNo),
		LineItems:          SnapshotLineItems(order.LineItems),
	}
	if err := s.orders.Upsert(ctx, record); err != nil {
		return fmt.Errorf("save shopify order: %w", err)
	}
	return nil
}

// ResolveShippingMethod 优先使用结账时的配送方式，否则从标签推断
func ResolveShippingMethod(tags string, shipping *model.Shipping) string {
	if shipping != nil && shipping.Method != "" {
		return shipping.Method
	}
	lower := strings.ToLower(tags)
	switch {
	case strings.Contains(lower, tagCVSPrefix+"seveneleven"):
		return "seveneleven"
	case strings.Contains(lower, tagCVSPrefix+"familymart"):
		return "familymart"
	case strings.Contains(lower, TagHomeDelivery):
		return model.ShippingHome
	}
	return ""
}

// SnapshotLineItems 订单商品快照
func SnapshotLineItems(items []shopify.LineItem) model.LineItems {
	snapshot := make(model.LineItems, 0, len(items))
	for _, item := range items {
		snapshot = append(snapshot, model.LineItemSnapshot{
			ID:       item.ID,
			Title:    item.Title,
			Quantity: item.Quantity,
			Price:    item.Price,
			SKU:      item.SKU,
		})
	}
	return snapshot
}

// ErrNotPickup 交易不需要建立超商物流单
var ErrNotPickup = errors.New("transaction is not a pickup-point order")

// LogisticsSubType 物流子类型
func LogisticsSubType(shipping model.Shipping) string {
	if sub, ok := logisticsSubTypes[shipping.Method]; ok {
		return sub
	}
	if shipping.Store != nil {
		return shipping.Store.LogisticsSubType
	}
	return ""
}

// CreateShipment 为超商取货交易建立物流单并保存
func (s *FulfillmentService) CreateShipment(ctx context.Context, tx *model.Transaction) (*model.LogisticsShipment, error) {
	shipping := tx.OrderPayload.Shipping
	if !shipping.IsPickup() || shipping.Store == nil || shipping.Store.ID == "" {
		return nil, ErrNotPickup
	}
	subType := LogisticsSubType(shipping)
	if subType == "" {
		return nil, ErrNotPickup
	}

	goodsName := defaultGoodsName
	if items := tx.OrderPayload.Items; len(items) > 0 && items[0].Name != "" {
		goodsName = items[0].Name
	}
	receiverName := shipping.Store.Name
	if receiverName == "" {
		receiverName = defaultReceiverName
	}
	receiverPhone := shipping.Store.Phone
	if receiverPhone == "" {
		receiverPhone = defaultReceiverPhone
	}

	resp, err := s.shipments.CreateShipment(ctx, ecpay.ShipmentRequest{
		MerchantTradeNo:   tx.MerchantTradeNo,
		LogisticsSubType:  subType,
		GoodsAmount:       tx.TotalAmount,
		GoodsName:         goodsName,
		SenderName:        s.sender.Name,
		SenderCellPhone:   s.sender.Phone,
		ReceiverName:      receiverName,
		ReceiverCellPhone: receiverPhone,
		ReceiverStoreID:   shipping.Store.ID,
	})
	if err != nil {
		s.metrics.Shipment("error")
		return nil, downstream("ecpay-logistics", err)
	}

	switch r := resp.(type) {
	case *ecpay.Success:
		if r.Field("AllPayLogisticsID") == "" {
			s.metrics.Shipment("error")
			return nil, downstream("ecpay-logistics", errors.New("response missing AllPayLogisticsID"))
		}
		shipment := &model.LogisticsShipment{
			AllPayLogisticsID: r.Field("AllPayLogisticsID"),
			LogisticsSubType:  r.Field("LogisticsSubType"),
			CVSPaymentNo:      r.Field("CVSPaymentNo"),
			CVSValidationNo:   r.Field("CVSValidationNo"),
		}
		if shipment.LogisticsSubType == "" {
			shipment.LogisticsSubType = subType
		}
		if err := s.transactions.SaveLogistics(ctx, tx.MerchantTradeNo, *shipment); err != nil {
			return shipment, fmt.Errorf("save logistics: %w", err)
		}
		s.metrics.Shipment("created")
		return shipment, nil
	case *ecpay.ProtocolError:
		s.metrics.Shipment("rejected")
		return nil, downstream("ecpay-logistics", r)
	case *ecpay.UnexpectedResponse:
		s.metrics.Shipment("unexpected")
		return nil, downstream("ecpay-logistics", r)
	default:
		s.metrics.Shipment("unexpected")
		return nil, downstream("ecpay-logistics", fmt.Errorf("unknown response %T", resp))
	}
}

// ShipAfterPayment 付款完成后建立物流单，失败只记录日志
func (s *FulfillmentService) ShipAfterPayment(ctx context.Context, tx *model.Transaction) {
	shipment, err := s.CreateShipment(ctx, tx)
	if errors.Is(err, ErrNotPickup) {
		return
	}
	if err != nil {
		s.logger.Error("建立超商物流单失败", "trade_no", tx.MerchantTradeNo, "error", err)
		return
	}
	s.logger.Info("超商物流单已建立", "trade_no", tx.MerchantTradeNo, "logistics_id", shipment.AllPayLogisticsID)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

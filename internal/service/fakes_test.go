package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"plgshop/internal/model"
	"plgshop/internal/repository"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/logger"
	"plgshop/pkg/shopify"
)

var testCredentials = ecpay.Config{MerchantID: "3002607", HashKey: "pwFHCqoQZGmho4w6", HashIV: "EkRm7iFT261dpevs"}

// memTransactions 内存版交易仓库，条件更新语义与SQL一致
type memTransactions struct {
	mu   sync.Mutex
	rows map[string]*model.Transaction
	now  func() time.Time
}

func newMemTransactions() *memTransactions {
	return &memTransactions{rows: map[string]*model.Transaction{}, now: time.Now}
}

func (m *memTransactions) Upsert(_ context.Context, tradeNo string, userID, total int64, payload model.OrderPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.rows[tradeNo]; ok && prev.UserID != userID {
		return repository.ErrTradeNoTaken
	}
	m.rows[tradeNo] = &model.Transaction{
		MerchantTradeNo: tradeNo,
		UserID:          userID,
		TotalAmount:     total,
		OrderPayload:    payload,
		CreatedAt:       m.now(),
		UpdatedAt:       m.now(),
	}
	return nil
}

func (m *memTransactions) GetByTradeNo(_ context.Context, tradeNo string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[tradeNo]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memTransactions) Claim(_ context.Context, tradeNo, token string, lease time.Duration, payment *model.PaymentInfo) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[tradeNo]
	if !ok || row.ProcessedAt.Valid {
		return false, nil
	}
	now := m.now()
	if row.ClaimToken.Valid && !row.ClaimedAt.Time.Before(now.Add(-lease)) {
		return false, nil
	}
	row.ClaimToken = sql.NullString{String: token, Valid: true}
	row.ClaimedAt = sql.NullTime{Time: now, Valid: true}
	row.ClaimAttempts++
	if payment != nil {
		row.GatewayTradeNo = sql.NullString{String: payment.GatewayTradeNo, Valid: true}
		row.PaymentDate = sql.NullString{String: payment.PaymentDate, Valid: true}
		row.PaymentType = sql.NullString{String: payment.PaymentType, Valid: true}
	}
	return true, nil
}

func (m *memTransactions) ReleaseClaim(_ context.Context, tradeNo, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[tradeNo]; ok && row.ClaimToken.String == token && !row.ProcessedAt.Valid {
		row.ClaimToken = sql.NullString{}
		row.ClaimedAt = sql.NullTime{}
	}
	return nil
}

func (m *memTransactions) MarkProcessed(_ context.Context, tradeNo, token string, ref model.OrderRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[tradeNo]
	if !ok || row.ProcessedAt.Valid || !row.ClaimToken.Valid || row.ClaimToken.String != token {
		return repository.ErrClaimLost
	}
	row.ProcessedAt = sql.NullTime{Time: m.now(), Valid: true}
	row.ShopifyOrderID = sql.NullInt64{Int64: ref.ID, Valid: true}
	row.ShopifyOrderName = sql.NullString{String: ref.Name, Valid: ref.Name != ""}
	row.ShopifyOrderNumber = sql.NullInt64{Int64: ref.Number, Valid: ref.Number != 0}
	row.ClaimToken = sql.NullString{}
	row.ClaimedAt = sql.NullTime{}
	return nil
}

func (m *memTransactions) SaveLogistics(_ context.Context, tradeNo string, s model.LogisticsShipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[tradeNo]; ok {
		row.AllPayLogisticsID = sql.NullString{String: s.AllPayLogisticsID, Valid: true}
		row.LogisticsSubType = sql.NullString{String: s.LogisticsSubType, Valid: true}
		row.CVSPaymentNo = sql.NullString{String: s.CVSPaymentNo, Valid: s.CVSPaymentNo != ""}
		row.CVSValidationNo = sql.NullString{String: s.CVSValidationNo, Valid: s.CVSValidationNo != ""}
	}
	return nil
}

func (m *memTransactions) UpdateLogisticsStatus(_ context.Context, logisticsID, status, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.AllPayLogisticsID.String == logisticsID && logisticsID != "" {
			row.LogisticsStatus = sql.NullString{String: status, Valid: true}
			row.LogisticsStatusMsg = sql.NullString{String: message, Valid: true}
			return true, nil
		}
	}
	return false, nil
}

func (m *memTransactions) ListStaleClaims(_ context.Context, lease time.Duration, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-lease)
	var out []*model.Transaction
	for _, row := range m.rows {
		if !row.ProcessedAt.Valid && row.ClaimToken.Valid && row.ClaimedAt.Time.Before(cutoff) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MerchantTradeNo < out[j].MerchantTradeNo })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memTransactions) ListByUser(_ context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, row := range m.rows {
		if row.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTransactions) List(_ context.Context, offset, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, row := range m.rows {
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MerchantTradeNo < out[j].MerchantTradeNo })
	if offset >= len(out) {
		return []*model.Transaction{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// age 把claim时间往前推，模拟租约过期
func (m *memTransactions) age(tradeNo string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[tradeNo]; ok && row.ClaimedAt.Valid {
		row.ClaimedAt.Time = row.ClaimedAt.Time.Add(-d)
	}
}

// fakePlatform 记录下游订单调用
type fakePlatform struct {
	mu       sync.Mutex
	orders   []shopify.OrderInput
	byTag    map[string]*shopify.Order
	nextID   int64
	createFn func(shopify.OrderInput) error
	findErr  error
	gate     chan struct{}
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{byTag: map[string]*shopify.Order{}, nextID: 1000}
}

func (p *fakePlatform) CreateOrder(_ context.Context, input shopify.OrderInput) (*shopify.Order, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createFn != nil {
		if err := p.createFn(input); err != nil {
			return nil, err
		}
	}
	p.nextID++
	order := &shopify.Order{
		ID:              p.nextID,
		Name:            fmt.Sprintf("#%d", p.nextID),
		OrderNumber:     p.nextID,
		FinancialStatus: input.FinancialStatus,
		Tags:            input.Tags,
	}
	for _, li := range input.LineItems {
		order.LineItems = append(order.LineItems, shopify.LineItem{Title: li.Title, Quantity: li.Quantity, Price: li.Price, SKU: li.SKU})
	}
	p.orders = append(p.orders, input)
	for _, tag := range splitTags(input.Tags) {
		p.byTag[tag] = order
	}
	return order, nil
}

func (p *fakePlatform) FindOrderByTag(_ context.Context, tag string) (*shopify.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.findErr != nil {
		return nil, p.findErr
	}
	return p.byTag[tag], nil
}

func (p *fakePlatform) created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

func splitTags(tags string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(tags); i++ {
		if i == len(tags) || tags[i] == ',' {
			tag := tags[start:i]
			for len(tag) > 0 && tag[0] == ' ' {
				tag = tag[1:]
			}
			if tag != "" {
				out = append(out, tag)
			}
			start = i + 1
		}
	}
	return out
}

// fakeShipments 物流建单
type fakeShipments struct {
	mu       sync.Mutex
	requests []ecpay.ShipmentRequest
	resp     ecpay.Response
	err      error
}

func (f *fakeShipments) CreateShipment(_ context.Context, req ecpay.ShipmentRequest) (ecpay.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &ecpay.Success{Fields: map[string]string{
		"AllPayLogisticsID": "LG" + req.MerchantTradeNo,
		"LogisticsSubType":  req.LogisticsSubType,
		"CVSPaymentNo":      "P01",
	}}, nil
}

// memOrders 订单镜像
type memOrders struct {
	mu      sync.Mutex
	rows    map[int64]*model.ShopifyOrder
	updates int
}

func newMemOrders() *memOrders {
	return &memOrders{rows: map[int64]*model.ShopifyOrder{}}
}

func (m *memOrders) Upsert(_ context.Context, o *model.ShopifyOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.rows[o.ShopifyOrderID] = &cp
	return nil
}

func (m *memOrders) UpdateFromWebhook(_ context.Context, o *model.ShopifyOrder) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[o.ShopifyOrderID]
	if !ok {
		return false, nil
	}
	m.updates++
	row.FinancialStatus = o.FinancialStatus
	row.FulfillmentStatus = o.FulfillmentStatus
	if o.TotalPrice.Valid {
		row.TotalPrice = o.TotalPrice
	}
	row.LineItems = o.LineItems
	return true, nil
}

func (m *memOrders) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memOrders) ListByUser(_ context.Context, userID int64, limit int) ([]*model.ShopifyOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.ShopifyOrder{}
	for _, row := range m.rows {
		if row.UserID.Int64 == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShopifyOrderID > out[j].ShopifyOrderID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type reconcileFixture struct {
	txs       *memTransactions
	platform  *fakePlatform
	shipments *fakeShipments
	orders    *memOrders
	signer    *ecpay.Signer
	svc       *ReconcilerService
}

func newReconcileFixture() *reconcileFixture {
	f := &reconcileFixture{
		txs:       newMemTransactions(),
		platform:  newFakePlatform(),
		shipments: &fakeShipments{},
		orders:    newMemOrders(),
		signer:    ecpay.NewSigner(testCredentials),
	}
	log := logger.NewNop()
	fulfillment := NewFulfillmentService(f.platform, f.shipments, f.orders, f.txs, Sender{Name: "PLG寄件", Phone: "0911222333"}, nil, log)
	f.svc = NewReconcilerService(f.txs, fulfillment, f.signer, 2*time.Minute, 20, nil, log)
	return f
}

func homePayload() model.OrderPayload {
	return model.OrderPayload{
		Items: []model.OrderItem{{ProductID: "7", Name: "PLG 經典款", Quantity: 2, PriceCents: 25000}},
		Shipping: model.Shipping{
			Method:  model.ShippingHome,
			Address: &model.Address{Receiver: "王小明", City: "台北市", District: "信義區", Detail: "市府路45號", Postal: "110"},
		},
	}
}

func pickupPayload() model.OrderPayload {
	return model.OrderPayload{
		Items: []model.OrderItem{{ProductID: "7", Name: "PLG 經典款", Quantity: 1, PriceCents: 50000}},
		Shipping: model.Shipping{
			Method: "familymart",
			Store:  &model.Store{ID: "006598", Name: "全家台北店", Address: "台北市中正區", Phone: "0912345678", LogisticsSubType: "FAMIC2C"},
		},
	}
}

func (f *reconcileFixture) callback(tradeNo, amount, rtnCode string) ecpay.Params {
	return f.signer.Sign(ecpay.Params{
		"MerchantID":      testCredentials.MerchantID,
		"MerchantTradeNo": tradeNo,
		"RtnCode":         rtnCode,
		"RtnMsg":          "交易成功",
		"TradeNo":         "2405011234567890",
		"TradeAmt":        amount,
		"PaymentDate":     "2024/05/01 12:00:00",
		"PaymentType":     "Credit_CreditCard",
		"SimulatePaid":    "0",
	}, ecpay.HashSHA256)
}

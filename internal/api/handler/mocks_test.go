package handler

import (
	"context"
	"net/url"

	"github.com/gin-gonic/gin"

	"plgshop/internal/middleware"
	"plgshop/internal/model"
	"plgshop/internal/service"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/shopify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asUser 模拟已登录用户
func asUser(id int64, email string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, id)
		c.Set(middleware.ContextEmail, email)
		c.Next()
	}
}

type MockAuthenticator struct {
	SendEmailCodeFunc func(ctx context.Context, email string) error
	RegisterFunc      func(ctx context.Context, email, password, code string) (*service.Session, error)
	LoginFunc         func(ctx context.Context, email, password string) (*service.Session, error)
	GoogleAuthURLFunc func(ctx context.Context) (string, error)
	GoogleLoginFunc   func(ctx context.Context, state, code string) (*service.Session, error)
}

func (m *MockAuthenticator) SendEmailCode(ctx context.Context, email string) error {
	return m.SendEmailCodeFunc(ctx, email)
}

func (m *MockAuthenticator) Register(ctx context.Context, email, password, code string) (*service.Session, error) {
	return m.RegisterFunc(ctx, email, password, code)
}

func (m *MockAuthenticator) Login(ctx context.Context, email, password string) (*service.Session, error) {
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthenticator) GoogleAuthURL(ctx context.Context) (string, error) {
	return m.GoogleAuthURLFunc(ctx)
}

func (m *MockAuthenticator) GoogleLogin(ctx context.Context, state, code string) (*service.Session, error) {
	return m.GoogleLoginFunc(ctx, state, code)
}

type MockCheckout struct {
	InitiateFunc func(ctx context.Context, userID int64, req service.CheckoutRequest) (*service.CheckoutForm, error)
}

func (m *MockCheckout) Initiate(ctx context.Context, userID int64, req service.CheckoutRequest) (*service.CheckoutForm, error) {
	return m.InitiateFunc(ctx, userID, req)
}

type MockReconciler struct {
	HandleFunc func(ctx context.Context, params ecpay.Params) (*service.CallbackResult, error)
}

func (m *MockReconciler) HandlePaymentCallback(ctx context.Context, params ecpay.Params) (*service.CallbackResult, error) {
	return m.HandleFunc(ctx, params)
}

type MockCart struct {
	SetItemFunc    func(ctx context.Context, userID, productID int64, quantity int) ([]model.CartItemView, error)
	ItemsFunc      func(ctx context.Context, userID int64) ([]model.CartItemView, error)
	CountFunc      func(ctx context.Context, userID int64) (int, error)
	RemoveItemFunc func(ctx context.Context, userID, productID int64) ([]model.CartItemView, error)
}

func (m *MockCart) SetItem(ctx context.Context, userID, productID int64, quantity int) ([]model.CartItemView, error) {
	return m.SetItemFunc(ctx, userID, productID, quantity)
}

func (m *MockCart) Items(ctx context.Context, userID int64) ([]model.CartItemView, error) {
	return m.ItemsFunc(ctx, userID)
}

func (m *MockCart) Count(ctx context.Context, userID int64) (int, error) {
	return m.CountFunc(ctx, userID)
}

func (m *MockCart) RemoveItem(ctx context.Context, userID, productID int64) ([]model.CartItemView, error) {
	return m.RemoveItemFunc(ctx, userID, productID)
}

type MockLogistics struct {
	MapFormFunc         func(subType, extraData string) *service.CheckoutForm
	StatusCallbackFunc  func(ctx context.Context, params ecpay.Params) error
	StartSelectionFunc  func(ctx context.Context, req service.SelectionRequest) (*service.SelectionReply, error)
	SaveSelectionFunc   func(ctx context.Context, form url.Values) error
	SelectionResultFunc func(ctx context.Context, token string) (*model.StoreSelection, error)
	ShipFunc            func(ctx context.Context, tradeNo string) (*model.LogisticsShipment, error)
}

func (m *MockLogistics) MapForm(subType, extraData string) *service.CheckoutForm {
	return m.MapFormFunc(subType, extraData)
}

func (m *MockLogistics) StoreCallbackURL(form url.Values) string {
	return "https://shop.example.com/payment/store-callback?" + form.Encode()
}

func (m *MockLogistics) SelectionRedirectURL(token string) string {
	return "https://shop.example.com/payment/store-callback?token=" + token
}

func (m *MockLogistics) HandleStatusCallback(ctx context.Context, params ecpay.Params) error {
	return m.StatusCallbackFunc(ctx, params)
}

func (m *MockLogistics) StartSelection(ctx context.Context, req service.SelectionRequest) (*service.SelectionReply, error) {
	return m.StartSelectionFunc(ctx, req)
}

func (m *MockLogistics) SaveSelection(ctx context.Context, form url.Values) error {
	return m.SaveSelectionFunc(ctx, form)
}

func (m *MockLogistics) SelectionResult(ctx context.Context, token string) (*model.StoreSelection, error) {
	return m.SelectionResultFunc(ctx, token)
}

func (m *MockLogistics) ShipTransaction(ctx context.Context, tradeNo string) (*model.LogisticsShipment, error) {
	return m.ShipFunc(ctx, tradeNo)
}

type MockOrders struct {
	ListFunc   func(ctx context.Context, userID int64, limit int) ([]model.OrderView, error)
	CreateFunc func(ctx context.Context, userID int64, req service.DirectOrderRequest) (*shopify.Order, error)
}

func (m *MockOrders) List(ctx context.Context, userID int64, limit int) ([]model.OrderView, error) {
	return m.ListFunc(ctx, userID, limit)
}

func (m *MockOrders) Create(ctx context.Context, userID int64, req service.DirectOrderRequest) (*shopify.Order, error) {
	return m.CreateFunc(ctx, userID, req)
}

type MockStorefront struct {
	CheckoutFunc func(ctx context.Context, req service.StorefrontCheckoutRequest) (*service.StorefrontCheckout, error)
	VariantsFunc func(ctx context.Context, productID string) ([]service.VariantView, error)
}

func (m *MockStorefront) Checkout(ctx context.Context, req service.StorefrontCheckoutRequest) (*service.StorefrontCheckout, error) {
	return m.CheckoutFunc(ctx, req)
}

func (m *MockStorefront) Variants(ctx context.Context, productID string) ([]service.VariantView, error) {
	return m.VariantsFunc(ctx, productID)
}

type MockWebhooks struct {
	HandleFunc func(ctx context.Context, topic string, body []byte, signature string) error
}

func (m *MockWebhooks) Handle(ctx context.Context, topic string, body []byte, signature string) error {
	return m.HandleFunc(ctx, topic, body, signature)
}

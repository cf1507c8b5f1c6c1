package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plgshop/internal/service"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/logger"
)

func newPaymentEngine(h *PaymentHandler) *gin.Engine {
	r := gin.New()
	r.POST("/api/ecpay/checkout", asUser(9, "buyer@example.com"), h.Checkout)
	r.POST("/api/ecpay/payment-return", h.PaymentReturn)
	r.POST("/api/ecpay/client-return", h.ClientReturn)
	return r
}

func postForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPaymentReturnReplies(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		result *service.CallbackResult
		status int
		body   string
	}{
		{"success", nil, &service.CallbackResult{TradeNo: "T1"}, http.StatusOK, "1|OK"},
		{"duplicate", nil, &service.CallbackResult{TradeNo: "T1", Duplicate: true}, http.StatusOK, "1|OK"},
		{"missing fields", service.NewValidationError("missing MerchantTradeNo"), nil, http.StatusBadRequest, "0|Fail"},
		{"bad signature", service.ErrSignatureMismatch, nil, http.StatusBadRequest, "0|Invalid CheckMacValue"},
		{"unknown trade", service.ErrTransactionNotFound, nil, http.StatusNotFound, "0|Order Not Found"},
		{"payment failed", service.ErrPaymentFailed, nil, http.StatusBadRequest, "0|Fail"},
		{"amount mismatch", service.ErrAmountMismatch, nil, http.StatusBadRequest, "0|Amount Mismatch"},
		{"claim held", service.ErrClaimHeld, nil, http.StatusConflict, "0|Processing"},
		{"shopify down", &service.DownstreamError{Service: "shopify", Err: errors.New("503")}, nil, http.StatusBadGateway, "0|Shopify Error"},
		{"wrapped shopify", fmt.Errorf("settle: %w", &service.DownstreamError{Service: "shopify", Err: errors.New("503")}), nil, http.StatusBadGateway, "0|Shopify Error"},
		{"database", errors.New("db down"), nil, http.StatusInternalServerError, "0|Error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got ecpay.Params
			h := NewPaymentHandler(nil, &MockReconciler{HandleFunc: func(_ context.Context, params ecpay.Params) (*service.CallbackResult, error) {
				got = params
				return tc.result, tc.err
			}}, true, "https://shop.example.com", logger.NewNop())

			w := postForm(newPaymentEngine(h), "/api/ecpay/payment-return", url.Values{
				"MerchantTradeNo": {"T1"},
				"RtnCode":         {"1"},
				"CheckMacValue":   {"ABC"},
			})

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.body, w.Body.String())
			assert.Equal(t, "T1", got["MerchantTradeNo"])
			assert.Equal(t, "ABC", got["CheckMacValue"])
		})
	}
}

func TestCheckoutReturnsSignedForm(t *testing.T) {
	var gotUser int64
	var gotReq service.CheckoutRequest
	h := NewPaymentHandler(&MockCheckout{InitiateFunc: func(_ context.Context, userID int64, req service.CheckoutRequest) (*service.CheckoutForm, error) {
		gotUser, gotReq = userID, req
		return &service.CheckoutForm{Action: "https://payment-stage.ecpay.com.tw/Cashier/AioCheckOut/V5", Fields: ecpay.Params{"MerchantTradeNo": req.TradeNo}}, nil
	}}, nil, true, "https://shop.example.com", logger.NewNop())

	w := postJSON(newPaymentEngine(h), "/api/ecpay/checkout",
		`{"tradeNo":"PLG1","totalAmount":500.4,"order":{"items":[{"productId":1,"name":"PLG","quantity":1,"priceCents":50000}],"shipping":{"method":"home"}}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"action":"https://payment-stage.ecpay.com.tw/Cashier/AioCheckOut/V5","fields":{"MerchantTradeNo":"PLG1"}}`, w.Body.String())
	assert.Equal(t, int64(9), gotUser)
	assert.Equal(t, 500.4, gotReq.TotalAmount)
	require.Len(t, gotReq.Order.Items, 1)
}

func TestCheckoutValidationAndConfig(t *testing.T) {
	checkout := &MockCheckout{InitiateFunc: func(context.Context, int64, service.CheckoutRequest) (*service.CheckoutForm, error) {
		return nil, service.NewValidationError("缺少交易編號或金額")
	}}

	w := postJSON(newPaymentEngine(NewPaymentHandler(checkout, nil, true, "", logger.NewNop())), "/api/ecpay/checkout", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":400,"msg":"缺少交易編號或金額"}`, w.Body.String())

	w = postJSON(newPaymentEngine(NewPaymentHandler(checkout, nil, false, "", logger.NewNop())), "/api/ecpay/checkout", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestClientReturnRedirectsToOrders(t *testing.T) {
	h := NewPaymentHandler(nil, nil, true, "https://shop.example.com", logger.NewNop())
	w := postForm(newPaymentEngine(h), "/api/ecpay/client-return", url.Values{"MerchantTradeNo": {"T1"}})

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.example.com/orders", w.Header().Get("Location"))
}

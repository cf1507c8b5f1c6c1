package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"plgshop/internal/constants"
	"plgshop/internal/middleware"
	"plgshop/internal/service"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/logger"
)

// 付款回调回应
const (
	replyOK             = "1|OK"
	replyFail           = "0|Fail"
	replyBadSignature   = "0|Invalid CheckMacValue"
	replyNotFound       = "0|Order Not Found"
	replyAmountMismatch = "0|Amount Mismatch"
	replyProcessing     = "0|Processing"
	replyShopifyError   = "0|Shopify Error"
	replyError          = "0|Error"
)

// CheckoutInitiator 建立付款表单
type CheckoutInitiator interface {
	Initiate(ctx context.Context, userID int64, req service.CheckoutRequest) (*service.CheckoutForm, error)
}

// PaymentReconciler 处理付款结果通知
type PaymentReconciler interface {
	HandlePaymentCallback(ctx context.Context, params ecpay.Params) (*service.CallbackResult, error)
}

// PaymentHandler 绿界金流处理器
type PaymentHandler struct {
	checkout     CheckoutInitiator
	reconciler   PaymentReconciler
	configured   bool
	clientOrigin string
	logger       *logger.Logger
}

// NewPaymentHandler 创建金流处理器，configured为false时结账直接报错
func NewPaymentHandler(checkout CheckoutInitiator, reconciler PaymentReconciler, configured bool, clientOrigin string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout:     checkout,
		reconciler:   reconciler,
		configured:   configured,
		clientOrigin: clientOrigin,
		logger:       log,
	}
}

// Checkout 建立待付款交易并返回签名后的表单
func (h *PaymentHandler) Checkout(c *gin.Context) {
	if !h.configured {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": constants.ErrECPayNotConfigured})
		return
	}
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}

	form, err := h.checkout.Initiate(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// PaymentReturn 绿界付款结果通知，回应为纯文本
func (h *PaymentHandler) PaymentReturn(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, replyFail)
		return
	}
	params := ecpay.ParamsFromForm(c.Request.PostForm)

	result, err := h.reconciler.HandlePaymentCallback(c.Request.Context(), params)
	if err != nil {
		status, body := callbackReply(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("付款通知处理失败", "trade_no", params["MerchantTradeNo"], "error", err)
		}
		c.String(status, body)
		return
	}
	if result.Duplicate {
		h.logger.Debug("重复的付款通知", "trade_no", result.TradeNo)
	}
	c.String(http.StatusOK, replyOK)
}

func callbackReply(err error) (int, string) {
	var down *service.DownstreamError
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, replyFail
	case errors.Is(err, service.ErrSignatureMismatch):
		return http.StatusBadRequest, replyBadSignature
	case errors.Is(err, service.ErrTransactionNotFound):
		return http.StatusNotFound, replyNotFound
	case errors.Is(err, service.ErrPaymentFailed):
		return http.StatusBadRequest, replyFail
	case errors.Is(err, service.ErrAmountMismatch):
		return http.StatusBadRequest, replyAmountMismatch
	case errors.Is(err, service.ErrClaimHeld):
		return http.StatusConflict, replyProcessing
	case errors.As(err, &down):
		return http.StatusBadGateway, replyShopifyError
	default:
		return http.StatusInternalServerError, replyError
	}
}

// ClientReturn 付款完成后浏览器跳回订单页
func (h *PaymentHandler) ClientReturn(c *gin.Context) {
	_ = c.Request.ParseForm()
	h.logger.Info("付款完成返回", "trade_no", c.Request.PostForm.Get("MerchantTradeNo"), "rtn_code", c.Request.PostForm.Get("RtnCode"))
	c.Redirect(http.StatusFound, h.clientOrigin+"/orders")
}

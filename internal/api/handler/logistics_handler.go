package handler

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"plgshop/internal/constants"
	"plgshop/internal/model"
	"plgshop/internal/service"
	"plgshop/internal/types"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/logger"
)

// Logistics 超商物流操作
type Logistics interface {
	MapForm(subType, extraData string) *service.CheckoutForm
	StoreCallbackURL(form url.Values) string
	SelectionRedirectURL(token string) string
	HandleStatusCallback(ctx context.Context, params ecpay.Params) error
	StartSelection(ctx context.Context, req service.SelectionRequest) (*service.SelectionReply, error)
	SaveSelection(ctx context.Context, form url.Values) error
	SelectionResult(ctx context.Context, token string) (*model.StoreSelection, error)
	ShipTransaction(ctx context.Context, tradeNo string) (*model.LogisticsShipment, error)
}

var storeRedirectPage = template.Must(template.New("store-callback").Parse(`<!DOCTYPE html>
<html lang="zh-Hant">
  <head>
    <meta charset="utf-8" />
    <title>門市資料回傳中</title>
  </head>
  <body>
    <p>門市資料回傳中，請稍候…</p>
    <script>window.location.replace({{.}});</script>
  </body>
</html>`))

// LogisticsHandler 物流处理器
type LogisticsHandler struct {
	logistics  Logistics
	configured bool
	logger     *logger.Logger
}

// NewLogisticsHandler 创建物流处理器
func NewLogisticsHandler(logistics Logistics, configured bool, log *logger.Logger) *LogisticsHandler {
	return &LogisticsHandler{logistics: logistics, configured: configured, logger: log}
}

func (h *LogisticsHandler) requireConfigured(c *gin.Context) bool {
	if !h.configured {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": constants.ErrECPayNotConfigured})
		return false
	}
	return true
}

// MapToken 签名的电子地图选店表单
func (h *LogisticsHandler) MapToken(c *gin.Context) {
	if !h.requireConfigured(c) {
		return
	}
	var req types.MapTokenRequest
	// 空body也可以
	_ = c.ShouldBindJSON(&req)
	c.JSON(http.StatusOK, h.logistics.MapForm(req.LogisticsSubType, req.ExtraData))
}

// MapCallback 电子地图回传，页面跳回前端并带上门市参数
func (h *LogisticsHandler) MapCallback(c *gin.Context) {
	_ = c.Request.ParseForm()
	target := h.logistics.StoreCallbackURL(c.Request.PostForm)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := storeRedirectPage.Execute(c.Writer, target); err != nil {
		h.logger.Error("渲染门市回传页面失败", "error", err)
	}
}

// StatusCallback 物流状态通知
func (h *LogisticsHandler) StatusCallback(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, replyFail)
		return
	}
	err := h.logistics.HandleStatusCallback(c.Request.Context(), ecpay.ParamsFromForm(c.Request.PostForm))
	switch {
	case err == nil:
		c.String(http.StatusOK, replyOK)
	case errors.Is(err, service.ErrSignatureMismatch):
		c.String(http.StatusBadRequest, replyBadSignature)
	case errors.Is(err, service.ErrValidation):
		c.String(http.StatusBadRequest, replyFail)
	default:
		h.logger.Error("物流状态通知处理失败", "error", err)
		c.String(http.StatusInternalServerError, replyError)
	}
}

// ShippingOrder 管理员为交易手动建立物流单
func (h *LogisticsHandler) ShippingOrder(c *gin.Context) {
	var req types.ShippingOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidParams)
		return
	}
	shipment, err := h.logistics.ShipTransaction(c.Request.Context(), req.TradeNo)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": shipment})
}

// Selection 发起v2门市选择
func (h *LogisticsHandler) Selection(c *gin.Context) {
	if !h.requireConfigured(c) {
		return
	}
	var req service.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}

	reply, err := h.logistics.StartSelection(c.Request.Context(), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	if reply.HTML != "" {
		c.JSON(http.StatusOK, gin.H{"isHtml": true, "html": reply.HTML, "selectionToken": reply.SelectionToken})
		return
	}
	body := gin.H{}
	for k, v := range reply.Fields {
		body[k] = v
	}
	body["selectionToken"] = reply.SelectionToken
	c.JSON(http.StatusOK, body)
}

// SelectionCallback 门市选择结果通知，先回应再保存
func (h *LogisticsHandler) SelectionCallback(c *gin.Context) {
	_ = c.Request.ParseForm()
	form := c.Request.PostForm

	c.String(http.StatusOK, replyOK)
	c.Writer.Flush()

	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.logistics.SaveSelection(ctx, form); err != nil {
		h.logger.Error("保存门市选择失败", "token", form.Get("ExtraData"), "error", err)
	}
}

// SelectionResult 读取门市选择结果
func (h *LogisticsHandler) SelectionResult(c *gin.Context) {
	store, err := h.logistics.SelectionResult(c.Request.Context(), c.Param("token"))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"store": store})
}

// ClientCallback 门市选择后浏览器跳回前端
func (h *LogisticsHandler) ClientCallback(c *gin.Context) {
	_ = c.Request.ParseForm()
	token := firstValue(c.Request.PostForm, "ExtraData", "selectionToken", "extraData")
	c.Redirect(http.StatusSeeOther, h.logistics.SelectionRedirectURL(token))
}

func firstValue(form url.Values, keys ...string) string {
	for _, k := range keys {
		if v := form.Get(k); v != "" {
			return v
		}
	}
	return ""
}

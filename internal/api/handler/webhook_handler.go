package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"plgshop/internal/service"
	"plgshop/pkg/logger"
)

// WebhookReceiver 处理Shopify Webhook
type WebhookReceiver interface {
	Handle(ctx context.Context, topic string, body []byte, signature string) error
}

// WebhookHandler Webhook处理器
type WebhookHandler struct {
	webhooks WebhookReceiver
	logger   *logger.Logger
}

// NewWebhookHandler 创建Webhook处理器
func NewWebhookHandler(webhooks WebhookReceiver, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: log}
}

// Shopify 验签需要原始body
func (h *WebhookHandler) Shopify(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 5<<20))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}

	err = h.webhooks.Handle(c.Request.Context(), c.GetHeader("X-Shopify-Topic"), body, c.GetHeader("X-Shopify-Hmac-Sha256"))
	var validation *service.ValidationError
	switch {
	case err == nil:
		c.String(http.StatusOK, "ok")
	case errors.Is(err, service.ErrWebhookSignature):
		h.logger.Warn("Shopify Webhook签名不符", "topic", c.GetHeader("X-Shopify-Topic"))
		c.String(http.StatusUnauthorized, "Invalid signature")
	case errors.As(err, &validation):
		c.String(http.StatusBadRequest, validation.Message)
	default:
		h.logger.Error("Shopify Webhook处理失败", "error", err)
		c.String(http.StatusInternalServerError, "Error")
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"plgshop/internal/constants"
	"plgshop/internal/service"
	"plgshop/pkg/logger"
	"plgshop/pkg/shopify"
)

// Storefront Shopify结账与商品
type Storefront interface {
	Checkout(ctx context.Context, req service.StorefrontCheckoutRequest) (*service.StorefrontCheckout, error)
	Variants(ctx context.Context, productID string) ([]service.VariantView, error)
}

// StorefrontHandler Shopify处理器
type StorefrontHandler struct {
	storefront Storefront
	logger     *logger.Logger
}

// NewStorefrontHandler 创建Shopify处理器
func NewStorefrontHandler(storefront Storefront, log *logger.Logger) *StorefrontHandler {
	return &StorefrontHandler{storefront: storefront, logger: log}
}

// Checkout 建立Storefront购物车并返回结账网址
func (h *StorefrontHandler) Checkout(c *gin.Context) {
	var req service.StorefrontCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	result, err := h.storefront.Checkout(c.Request.Context(), req)
	if errors.Is(err, service.ErrStorefrontNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": constants.ErrStorefrontNotSet})
		return
	}
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Variants 商品规格列表
func (h *StorefrontHandler) Variants(c *gin.Context) {
	productID := c.Param("productId")
	variants, err := h.storefront.Variants(c.Request.Context(), productID)
	if errors.Is(err, shopify.ErrNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": constants.ErrShopifyNotSet})
		return
	}
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"productId": productID, "variants": variants})
}

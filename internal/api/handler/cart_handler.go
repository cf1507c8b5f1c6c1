package handler

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"plgshop/internal/constants"
	"plgshop/internal/middleware"
	"plgshop/internal/model"
	"plgshop/internal/types"
	"plgshop/pkg/logger"
)

// Cart 购物车操作
type Cart interface {
	SetItem(ctx context.Context, userID, productID int64, quantity int) ([]model.CartItemView, error)
	Items(ctx context.Context, userID int64) ([]model.CartItemView, error)
	Count(ctx context.Context, userID int64) (int, error)
	RemoveItem(ctx context.Context, userID, productID int64) ([]model.CartItemView, error)
}

// CartHandler 购物车处理器
type CartHandler struct {
	cart   Cart
	logger *logger.Logger
}

// NewCartHandler 创建购物车处理器
func NewCartHandler(cart Cart, log *logger.Logger) *CartHandler {
	return &CartHandler{cart: cart, logger: log}
}

// SetItem 加入或更新商品数量
func (h *CartHandler) SetItem(c *gin.Context) {
	var req types.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrCartItemInvalid)
		return
	}
	productID, ok1 := wholeNumber(req.ProductID)
	quantity, ok2 := wholeNumber(req.Quantity)
	if !ok1 || !ok2 {
		badRequest(c, constants.ErrCartItemInvalid)
		return
	}

	items, err := h.cart.SetItem(c.Request.Context(), middleware.UserID(c), productID, int(quantity))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": constants.SuccessCartItemAdded, "data": items})
}

// List 购物车明细
func (h *CartHandler) List(c *gin.Context) {
	items, err := h.cart.Items(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": items})
}

// Count 购物车商品数
func (h *CartHandler) Count(c *gin.Context) {
	n, err := h.cart.Count(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"count": n}})
}

// Remove 删除购物车商品
func (h *CartHandler) Remove(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || productID <= 0 {
		badRequest(c, constants.ErrProductIDInvalid)
		return
	}
	items, err := h.cart.RemoveItem(c.Request.Context(), middleware.UserID(c), productID)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": constants.SuccessCartItemGone, "data": items})
}

// wholeNumber 接受JSON数字或数字字符串，必须是整数
func wholeNumber(v any) (int64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

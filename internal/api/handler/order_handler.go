package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"plgshop/internal/constants"
	"plgshop/internal/middleware"
	"plgshop/internal/model"
	"plgshop/internal/service"
	"plgshop/pkg/logger"
	"plgshop/pkg/shopify"
)

// Orders 用户订单
type Orders interface {
	List(ctx context.Context, userID int64, limit int) ([]model.OrderView, error)
	Create(ctx context.Context, userID int64, req service.DirectOrderRequest) (*shopify.Order, error)
}

// OrderHandler 订单处理器
type OrderHandler struct {
	orders Orders
	logger *logger.Logger
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(orders Orders, log *logger.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: log}
}

// List 当前用户的订单
func (h *OrderHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	orders, err := h.orders.List(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"orders": orders}})
}

// Create 直接建立Shopify订单
func (h *OrderHandler) Create(c *gin.Context) {
	var req service.DirectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	order, err := h.orders.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 201, "data": gin.H{"orderId": order.ID, "order": order}})
}

package admin

import (
	"github.com/gin-gonic/gin"
)

// RegisterAdminRoutes 注册管理员路由
func RegisterAdminRoutes(router *gin.RouterGroup, h *Handler) {
	router.GET("/transactions", h.ListTransactions)
	router.POST("/reconcile", h.Reconcile)
	router.POST("/transactions/:tradeNo/shipment", h.CreateShipment)
}

package apis

import (
	"github.com/gin-gonic/gin"

	"plgshop/internal/api/handler"
)

// Handlers 所有业务处理器
type Handlers struct {
	Auth       *handler.AuthHandler
	Cart       *handler.CartHandler
	Payment    *handler.PaymentHandler
	Logistics  *handler.LogisticsHandler
	Orders     *handler.OrderHandler
	Storefront *handler.StorefrontHandler
	Webhooks   *handler.WebhookHandler
	Products   *handler.ProductHandler
}

// RegisterPublicRoutes 注册不需要登录的路由
func RegisterPublicRoutes(api *gin.RouterGroup, h Handlers, codeLimit gin.HandlerFunc) {
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/send-email-code", codeLimit, h.Auth.SendEmailCode)
		authGroup.POST("/register-email", codeLimit, h.Auth.RegisterEmail)
		authGroup.POST("/login-email", codeLimit, h.Auth.LoginEmail)
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.GET("/google", h.Auth.GoogleRedirect)
		authGroup.GET("/google/callback", h.Auth.GoogleCallback)
	}

	// 绿界服务器回调与浏览器跳转
	ecpayGroup := api.Group("/ecpay")
	{
		ecpayGroup.POST("/payment-return", h.Payment.PaymentReturn)
		ecpayGroup.POST("/client-return", h.Payment.ClientReturn)
	}

	logisticsGroup := api.Group("/logistics")
	{
		logisticsGroup.POST("/map-token", h.Logistics.MapToken)
		logisticsGroup.POST("/map-callback", h.Logistics.MapCallback)
		logisticsGroup.POST("/status-callback", h.Logistics.StatusCallback)
		logisticsGroup.POST("/client-callback", h.Logistics.ClientCallback)
	}

	selectionGroup := api.Group("/logistics-new")
	{
		selectionGroup.POST("/selection", h.Logistics.Selection)
		selectionGroup.POST("/selection-callback", h.Logistics.SelectionCallback)
		selectionGroup.GET("/selection-result/:token", h.Logistics.SelectionResult)
		selectionGroup.POST("/client-callback", h.Logistics.ClientCallback)
	}

	api.GET("/products", h.Products.List)
	api.GET("/products/:id", h.Products.Get)
	api.POST("/storefront/checkout", h.Storefront.Checkout)
	api.GET("/shopify/products/:productId/variants", h.Storefront.Variants)
	api.POST("/webhooks/shopify", h.Webhooks.Shopify)
	api.GET("/dial-codes", handler.DialCodes)
}

// RegisterAuthRoutes 注册需要登录的路由
func RegisterAuthRoutes(api *gin.RouterGroup, h Handlers) {
	api.GET("/auth/me", h.Auth.Me)
	api.POST("/ecpay/checkout", h.Payment.Checkout)

	cartGroup := api.Group("/cart")
	{
		cartGroup.GET("", h.Cart.List)
		cartGroup.POST("", h.Cart.SetItem)
		cartGroup.GET("/count", h.Cart.Count)
		cartGroup.DELETE("/:productId", h.Cart.Remove)
	}

	orderGroup := api.Group("/orders")
	{
		orderGroup.GET("", h.Orders.List)
		orderGroup.POST("", h.Orders.Create)
	}
}

// RegisterAdminLogisticsRoutes 需要管理员权限的物流路由
func RegisterAdminLogisticsRoutes(api *gin.RouterGroup, h Handlers) {
	api.POST("/logistics/shipping-order", h.Logistics.ShippingOrder)
}

package api

import (
	"github.com/gin-gonic/gin"

	"plgshop/internal/api/admin"
	"plgshop/internal/api/apis"
	"plgshop/internal/api/handler"
	"plgshop/internal/app"
	"plgshop/internal/middleware"
)

// SetupRouter 设置API路由
func SetupRouter(a *app.App) *gin.Engine {
	cfg := a.Config
	logger := a.Logger

	// 创建Gin引擎
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// 使用中间件
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.ClientOrigin))
	router.Use(middleware.Metrics(a.Metrics))

	ecpayReady := cfg.ECPay.Configured()
	if !ecpayReady {
		logger.Warn("ECPay 凭证未设置，结账与物流接口将返回错误")
	}

	// 初始化处理器
	handlers := apis.Handlers{
		Auth: handler.NewAuthHandler(a.Users, handler.CookieConfig{
			Name:   cfg.Auth.CookieName,
			MaxAge: a.Tokens.TTL(),
			Secure: cfg.Auth.SecureCookie,
		}, cfg.ClientOrigin, logger),
		Cart:       handler.NewCartHandler(a.Cart, logger),
		Payment:    handler.NewPaymentHandler(a.Checkout, a.Reconciler, ecpayReady, cfg.ClientOrigin, logger),
		Logistics:  handler.NewLogisticsHandler(a.Logistics, ecpayReady, logger),
		Orders:     handler.NewOrderHandler(a.Orders, logger),
		Storefront: handler.NewStorefrontHandler(a.Storefront, logger),
		Webhooks:   handler.NewWebhookHandler(a.Webhooks, logger),
		Products:   handler.NewProductHandler(a.Products, logger),
	}
	adminHandler := admin.NewHandler(a.Admin, a.Reconciler, a.Logistics, logger)

	// 健康检查与指标
	router.GET("/", handler.Health)
	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	v1 := router.Group("/api")

	// 验证码与登录接口按IP限流
	codeLimiter := middleware.NewIPRateLimiter(1, 5)
	apis.RegisterPublicRoutes(v1, handlers, middleware.RateLimit(codeLimiter))

	// 创建需要认证的API路由组
	userAuth := middleware.UserAuth(a.Tokens, cfg.Auth.CookieName)
	authRouter := v1.Group("")
	authRouter.Use(userAuth)
	apis.RegisterAuthRoutes(authRouter, handlers)

	// 注册管理员API路由
	if !a.Admin.Configured() {
		logger.Warn("ADMIN_EMAILS 未设置，管理员接口将拒绝所有请求")
	}
	adminRouter := v1.Group("")
	adminRouter.Use(userAuth, middleware.AdminAuth(a.Admin))
	apis.RegisterAdminLogisticsRoutes(adminRouter, handlers)
	admin.RegisterAdminRoutes(adminRouter.Group("/admin"), adminHandler)

	return router
}

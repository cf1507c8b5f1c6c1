package app

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"plgshop/config"
	"plgshop/internal/auth"
	"plgshop/internal/metrics"
	"plgshop/internal/model"
	"plgshop/internal/repository"
	"plgshop/internal/service"
	"plgshop/pkg/async"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/email"
	"plgshop/pkg/googleauth"
	"plgshop/pkg/logger"
	"plgshop/pkg/shopify"
)

// App 组装好的服务
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Worker  *async.Worker
	Tokens  *auth.TokenManager

	Users       *service.UserService
	Cart        *service.CartService
	Products    *service.ProductService
	Checkout    *service.CheckoutService
	Reconciler  *service.ReconcilerService
	Fulfillment *service.FulfillmentService
	Logistics   *service.LogisticsService
	Orders      *service.OrderService
	Storefront  *service.StorefrontService
	Webhooks    *service.WebhookService
	Admin       *service.AdminService
}

// New 初始化存储库、外部客户端与服务，worker需由调用方启动
func New(cfg *config.Config, log *logger.Logger, db *sqlx.DB, rdb *redis.Client) *App {
	m := metrics.New()

	// 初始化存储库
	userRepo := repository.NewUserRepository(db)
	verificationRepo := repository.NewEmailVerificationRepository(db)
	cartRepo := repository.NewCartRepository(db)
	productRepo := repository.NewProductRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	orderRepo := repository.NewShopifyOrderRepository(db)
	selectionRepo := repository.NewStoreSelectionRepository(rdb)
	stateStore := repository.NewAuthStateStore(rdb)

	// 外部客户端
	paymentSigner := ecpay.NewSigner(ecpay.Config{
		MerchantID: cfg.ECPay.MerchantID,
		HashKey:    cfg.ECPay.HashKey,
		HashIV:     cfg.ECPay.HashIV,
	})
	logisticsClient := ecpay.NewLogisticsClient(ecpay.LogisticsConfig{
		Credentials: ecpay.Config{
			MerchantID: cfg.ECPay.Logistics.MerchantID,
			HashKey:    cfg.ECPay.Logistics.HashKey,
			HashIV:     cfg.ECPay.Logistics.HashIV,
		},
		PlatformID:     cfg.ECPay.PlatformID,
		MapURL:         cfg.ECPay.MapURL,
		CreateURL:      cfg.ECPay.CreateURL,
		SelectionURL:   cfg.ECPay.SelectionURL,
		ServerReplyURL: cfg.ServerBaseURL + "/api/logistics/status-callback",
		Timeout:        cfg.ECPay.RequestTimeout,
	})
	shopifyClient := shopify.NewClient(shopify.Config{
		StoreDomain: cfg.Shopify.StoreDomain,
		AccessToken: cfg.Shopify.AccessToken,
		APIVersion:  cfg.Shopify.APIVersion,
		Timeout:     cfg.Shopify.Timeout,
	})
	storefrontClient := shopify.NewStorefrontClient(shopify.StorefrontConfig{
		StoreDomain: cfg.Shopify.StoreDomain,
		AccessToken: cfg.Shopify.StorefrontToken,
		APIVersion:  cfg.Shopify.StorefrontVersion,
		Timeout:     cfg.Shopify.Timeout,
	})
	googleClient := googleauth.New(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURI)

	// 初始化邮件服务
	emailService := email.NewService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
		UseTLS:   cfg.Email.UseTLS,
	}, nil, log)

	// 创建异步工作器
	worker := async.NewWorker(100, log)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// 初始化服务
	fulfillment := service.NewFulfillmentService(
		shopifyClient,
		logisticsClient,
		orderRepo,
		transactionRepo,
		service.Sender{Name: cfg.ECPay.SenderName, Phone: cfg.ECPay.SenderPhone},
		m,
		log,
	)

	users := service.NewUserService(userRepo, verificationRepo, stateStore, tokens, emailService, worker, googleClient, log)
	reconciler := service.NewReconcilerService(
		transactionRepo, fulfillment, paymentSigner,
		cfg.Reconcile.ClaimLease, cfg.Reconcile.BatchSize, m, log,
	)
	reconciler.OnPaid(func(ctx context.Context, tx *model.Transaction, ref model.OrderRef) {
		if err := users.NotifyOrderPaid(ctx, tx.UserID, ref.Name, tx.TotalAmount); err != nil {
			log.Warn("付款通知邮件排队失败", "trade_no", tx.MerchantTradeNo, "error", err)
		}
	})

	return &App{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Worker:  worker,
		Tokens:  tokens,

		Users:    users,
		Cart:     service.NewCartService(cartRepo),
		Products: service.NewProductService(productRepo),
		Checkout: service.NewCheckoutService(transactionRepo, paymentSigner, service.CheckoutConfig{
			MerchantID:    cfg.ECPay.MerchantID,
			PaymentURL:    cfg.ECPay.PaymentURL,
			ReturnURL:     cfg.ServerBaseURL + "/api/ecpay/payment-return",
			ClientBackURL: cfg.ECPay.ClientBackURL,
		}, log),
		Reconciler:  reconciler,
		Fulfillment: fulfillment,
		Logistics: service.NewLogisticsService(logisticsClient, selectionRepo, transactionRepo, fulfillment, service.LogisticsConfig{
			ServerBaseURL: cfg.ServerBaseURL,
			ClientOrigin:  cfg.ClientOrigin,
			SenderName:    cfg.ECPay.SenderName,
			SenderZipCode: cfg.ECPay.SenderZipCode,
			SenderAddress: cfg.ECPay.SenderAddress,
		}, log),
		Orders:     service.NewOrderService(shopifyClient, orderRepo, fulfillment),
		Storefront: service.NewStorefrontService(storefrontClient, shopifyClient),
		Webhooks:   service.NewWebhookService(cfg.Shopify.WebhookSecret, orderRepo, log),
		Admin:      service.NewAdminService(transactionRepo, cfg.AdminEmails),
	}
}
